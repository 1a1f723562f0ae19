package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, appeal, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeReasonRequired       = "REASON_REQUIRED"
	ErrCodeFieldTooLong         = "FIELD_TOO_LONG"
	ErrCodeNotBanned            = "NOT_BANNED"
	ErrCodeAppealExists         = "APPEAL_EXISTS"
	ErrCodeSubmissionInProgress = "SUBMISSION_IN_PROGRESS"
	ErrCodeAppealRejected       = "APPEAL_REJECTED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
)

// NewReasonRequiredError はBAN理由の認識欄が未入力の場合のエラーを生成する。
func NewReasonRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeReasonRequired,
		Message:  "Please tell us whether you know why you were banned.",
		Category: "validation",
		Action:   "Fill in the required field and submit again.",
	}
}

// NewFieldTooLongError は入力欄が上限文字数を超えた場合のエラーを生成する。
func NewFieldTooLongError(field string, max int) *APIError {
	return &APIError{
		Code:     ErrCodeFieldTooLong,
		Message:  fmt.Sprintf("The %s field is too long.", field),
		Category: "validation",
		Action:   fmt.Sprintf("Shorten it to at most %d characters.", max),
	}
}

// NewNotBannedError はBANされていないユーザーが申し立てを送信した場合のエラーを生成する。
func NewNotBannedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotBanned,
		Message:  "Hey, you're not banned!",
		Category: "appeal",
		Action:   "There is nothing to appeal.",
	}
}

// NewAppealExistsError は審査中の申し立てが既にある場合のエラーを生成する。
func NewAppealExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAppealExists,
		Message:  "Your appeal is pending review.",
		Category: "appeal",
		Action:   "Wait for the moderators to review your existing appeal.",
	}
}

// NewSubmissionInProgressError は同一ユーザーの送信処理が実行中の場合のエラーを生成する。
func NewSubmissionInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionInProgress,
		Message:  "Your appeal is already being submitted.",
		Category: "appeal",
		Action:   "Wait a moment and reload the page.",
	}
}

// NewAppealRejectedError はモデレーションAPIが申し立ての作成を受け付けなかった場合のエラーを生成する。
func NewAppealRejectedError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeAppealRejected,
		Message:  fmt.Sprintf("The appeal could not be submitted (status %d).", status),
		Category: "appeal",
		Action:   "Your answers were kept. Try submitting again later.",
	}
}

// NewUserNotFoundError はモデレーションAPIにユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "We could not find your user record.",
		Category: "appeal",
		Action:   "Try again later or contact a moderator.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "You are not logged in.",
		Category: "auth",
		Action:   "Log in with Discord.",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request body.",
	}
}
