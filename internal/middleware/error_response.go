package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/banappeal/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, InternalError())
}

// WriteUpstreamError はモデレーションAPIに到達できない場合の統一レスポンスを書き込む。
func WriteUpstreamError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusBadGateway, UpstreamError())
}

// InternalError は内部エラーのAPIErrorを返す。
func InternalError() *model.APIError {
	return &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Something went wrong on our side.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// UpstreamError はモデレーションAPIとの通信失敗のAPIErrorを返す。
func UpstreamError() *model.APIError {
	return &model.APIError{
		Code:     "UPSTREAM_UNAVAILABLE",
		Message:  "The appeal service is unreachable right now.",
		Category: "system",
		Action:   "Please reload the page in a few minutes.",
	}
}

// StatusCodeFor はAPIErrorのコードに対応するHTTPステータスを返す。
func StatusCodeFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeReasonRequired, model.ErrCodeFieldTooLong, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNotBanned, model.ErrCodeAppealExists, model.ErrCodeSubmissionInProgress:
		return http.StatusConflict
	case model.ErrCodeAppealRejected, model.ErrCodeUserNotFound, "UPSTREAM_UNAVAILABLE":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
