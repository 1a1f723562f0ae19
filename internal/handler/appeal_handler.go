package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/hitoshi/banappeal/internal/appeal"
	"github.com/hitoshi/banappeal/internal/middleware"
	"github.com/hitoshi/banappeal/internal/model"
	"github.com/hitoshi/banappeal/internal/view"
)

// maxSubmitBodyBytes は申し立てリクエストボディの上限。
const maxSubmitBodyBytes = 64 << 10

// AppealServiceInterface は申し立てハンドラーが必要とするサービスインターフェース。
type AppealServiceInterface interface {
	Load(ctx context.Context, session model.Session) (*appeal.State, error)
	SubmitDraft(ctx context.Context, session model.Session, draft model.FormDraft) (*appeal.State, error)
}

// AppealHandler は申し立てページとAPIのHTTPハンドラー。
type AppealHandler struct {
	service AppealServiceInterface
	logger  *slog.Logger
}

// NewAppealHandler はAppealHandlerを生成する。
func NewAppealHandler(service AppealServiceInterface, logger *slog.Logger) *AppealHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppealHandler{service: service, logger: logger}
}

// stateResponse は画面状態のAPIレスポンス。
type stateResponse struct {
	View     model.ViewState  `json:"view"`
	Ban      *model.BanRecord `json:"ban"`
	Appeal   *model.Appeal    `json:"appeal"`
	Identity *model.Identity  `json:"identity"`
}

// Page は申し立てページを表示する。
// GET /ban-appeals
func (h *AppealHandler) Page(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	state, err := h.service.Load(r.Context(), session)
	if err != nil {
		h.logger.Error("failed to load appeal state",
			slog.String("user_id", identityID(session)),
			slog.String("error", err.Error()),
		)
		h.writeErrorPage(w, r, session, http.StatusBadGateway, middleware.UpstreamError())
		return
	}

	h.writeStatePage(w, r, http.StatusOK, state, model.FormDraft{}, nil)
}

// SubmitForm はHTMLフォームからの申し立てを処理する。
// POST /ban-appeals
// 成功時は申し立てページへリダイレクトし、失敗時は入力内容を保持したままフォームを再表示する。
func (h *AppealHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.writeErrorPage(w, r, session, http.StatusBadRequest, model.NewInvalidRequestError("malformed form"))
		return
	}
	draft := model.FormDraft{
		Reason:   r.PostFormValue("reason"),
		Solution: r.PostFormValue("solution"),
		Future:   r.PostFormValue("future"),
		Extra:    r.PostFormValue("extra"),
	}

	state, err := h.service.SubmitDraft(r.Context(), session, draft)
	if err != nil {
		h.handleFormError(w, r, session, state, draft, err)
		return
	}

	http.Redirect(w, r, PagePath, http.StatusSeeOther)
}

// State は現在の画面状態をJSONで返す。
// GET /api/appeal/state
func (h *AppealHandler) State(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	state, err := h.service.Load(r.Context(), session)
	if err != nil {
		h.logger.Error("failed to load appeal state",
			slog.String("user_id", identityID(session)),
			slog.String("error", err.Error()),
		)
		middleware.WriteUpstreamError(w)
		return
	}

	writeJSON(w, http.StatusOK, toStateResponse(state))
}

// Submit はJSONの申し立てを処理する。
// POST /api/appeal
func (h *AppealHandler) Submit(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	var draft model.FormDraft
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("malformed JSON body"))
		return
	}

	state, err := h.service.SubmitDraft(r.Context(), session, draft)
	if err != nil {
		h.handleServiceError(w, session, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStateResponse(state))
}

// handleServiceError はサービス層から返されたエラーを統一エラーレスポンスに変換する。
func (h *AppealHandler) handleServiceError(w http.ResponseWriter, session model.Session, err error) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, middleware.StatusCodeFor(apiErr), apiErr)
	case errors.Is(err, appeal.ErrSubmitWithoutBan):
		h.logger.Error("appeal submission without ban",
			slog.String("user_id", identityID(session)),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	default:
		h.logger.Error("appeal submission failed",
			slog.String("user_id", identityID(session)),
			slog.String("error", err.Error()),
		)
		middleware.WriteUpstreamError(w)
	}
}

// handleFormError はフォーム送信のエラーをページとして表示する。
func (h *AppealHandler) handleFormError(w http.ResponseWriter, r *http.Request, session model.Session, state *appeal.State, draft model.FormDraft, err error) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Code == model.ErrCodeUnauthorized {
			h.render(w, r, http.StatusUnauthorized, view.Page{Body: view.Login(apiErr)})
			return
		}
		if state == nil {
			h.writeErrorPage(w, r, session, middleware.StatusCodeFor(apiErr), apiErr)
			return
		}
		h.writeStatePage(w, r, middleware.StatusCodeFor(apiErr), state, draft, apiErr)
	case errors.Is(err, appeal.ErrSubmitWithoutBan):
		h.logger.Error("appeal submission without ban",
			slog.String("user_id", identityID(session)),
			slog.String("error", err.Error()),
		)
		h.writeErrorPage(w, r, session, http.StatusInternalServerError, middleware.InternalError())
	default:
		h.logger.Error("appeal submission failed",
			slog.String("user_id", identityID(session)),
			slog.String("error", err.Error()),
		)
		if state == nil {
			h.writeErrorPage(w, r, session, http.StatusBadGateway, middleware.UpstreamError())
			return
		}
		h.writeStatePage(w, r, http.StatusBadGateway, state, draft, middleware.UpstreamError())
	}
}

// writeStatePage は画面状態に対応するページを書き込む。
func (h *AppealHandler) writeStatePage(w http.ResponseWriter, r *http.Request, statusCode int, state *appeal.State, draft model.FormDraft, apiErr *model.APIError) {
	csrfToken := middleware.CSRFTokenFromContext(r.Context())

	var body templ.Component
	switch state.View {
	case model.ViewLoading:
		body = view.Loading()
	case model.ViewUnauthenticated:
		body = view.Login(apiErr)
	case model.ViewNotBanned:
		body = view.NotBanned()
	default:
		body = view.BanAppeal(view.AppealForm{
			Ban:       state.Ban,
			Appeal:    pendingAppeal(state),
			Draft:     draft,
			Error:     apiErr,
			CSRFToken: csrfToken,
		})
	}

	h.render(w, r, statusCode, view.Page{
		Identity:  state.Session.Identity,
		CSRFToken: csrfToken,
		Body:      body,
	})
}

// writeErrorPage はエラーパネルのみのページを書き込む。
func (h *AppealHandler) writeErrorPage(w http.ResponseWriter, r *http.Request, session model.Session, statusCode int, apiErr *model.APIError) {
	h.render(w, r, statusCode, view.Page{
		Identity:  session.Identity,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Body:      view.ErrorPanel(apiErr),
	})
}

func (h *AppealHandler) render(w http.ResponseWriter, r *http.Request, statusCode int, page view.Page) {
	view.PageHandler(statusCode, page, templ.WithErrorHandler(h.renderError)).ServeHTTP(w, r)
}

// renderError は描画失敗をログに記録し、500を返すハンドラーを返す。
func (h *AppealHandler) renderError(r *http.Request, err error) http.Handler {
	h.logger.Warn("failed to render page",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	})
}

// pendingAppeal は審査待ち表示の場合のみ申し立てを返す。
func pendingAppeal(state *appeal.State) *model.Appeal {
	if state.View != model.ViewBannedPending {
		return nil
	}
	return state.Appeal
}

func toStateResponse(state *appeal.State) stateResponse {
	return stateResponse{
		View:     state.View,
		Ban:      state.Ban,
		Appeal:   state.Appeal,
		Identity: state.Session.Identity,
	}
}

func identityID(session model.Session) string {
	if session.Identity == nil {
		return ""
	}
	return session.Identity.ID
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// redirectRoot はルートパスを申し立てページへ転送する。
// GET /
func redirectRoot(w http.ResponseWriter, r *http.Request) {
	target := PagePath
	if q := r.URL.RawQuery; q != "" {
		target += "?" + q
	}
	http.Redirect(w, r, target, http.StatusFound)
}
