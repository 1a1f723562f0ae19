// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/banappeal/internal/metrics"
	"github.com/hitoshi/banappeal/internal/middleware"
	"github.com/hitoshi/banappeal/internal/model"
)

const (
	oauthStateCookie = "oauth_state"

	// PagePath は申し立てページのパス。
	PagePath = "/ban-appeals"

	loginOutcomeSuccess      = "success"
	loginOutcomeFailure      = "failure"
	loginOutcomeInvalidState = "invalid_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.IssuedSession, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はDiscord OAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, m metrics.MetricsCollector, logger *slog.Logger) *AuthHandler {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: m,
		logger:  logger,
	}
}

// Login はDiscord OAuthフローを開始する。
// GET /auth/discord/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/discord/callback?code=xxx&state=yyy
// 失敗した場合は詳細を表示せず、未ログイン状態のページへリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		h.logger.Warn("oauth state mismatch", slog.String("query_state", state))
		h.metrics.RecordLogin(loginOutcomeInvalidState)
		h.redirectToPage(w, r)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得（ユーザーが認可を拒否した場合はerrorパラメータが付く）
	code := r.URL.Query().Get("code")
	if code == "" {
		h.logger.Warn("oauth authorization failed",
			slog.String("error", r.URL.Query().Get("error")),
		)
		h.metrics.RecordLogin(loginOutcomeFailure)
		h.redirectToPage(w, r)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback failed", slog.String("error", err.Error()))
		h.metrics.RecordLogin(loginOutcomeFailure)
		h.redirectToPage(w, r)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	maxAge := h.config.SessionMaxAge
	if remaining := int(time.Until(session.ExpiresAt).Seconds()); remaining > 0 && remaining < maxAge {
		maxAge = remaining
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLogin(loginOutcomeSuccess)

	// 5. 申し立てページにリダイレクト
	h.redirectToPage(w, r)
}

// Logout はセッションCookieを破棄する。
// POST /auth/logout
// セッションはサーバー側に保存していないため、Cookieの削除のみで完了する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.pageURL(), http.StatusSeeOther)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if !session.Authenticated() {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Identity)
}

func (h *AuthHandler) pageURL() string {
	return strings.TrimRight(h.config.BaseURL, "/") + PagePath
}

func (h *AuthHandler) redirectToPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.pageURL(), http.StatusTemporaryRedirect)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
