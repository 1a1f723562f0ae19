// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/banappeal/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// sessionContextKey はリクエストコンテキストにセッション状態を格納するためのキー。
	sessionContextKey = contextKey("session")
	// csrfTokenContextKey はリクエストコンテキストにCSRFトークンを格納するためのキー。
	csrfTokenContextKey = contextKey("csrf_token")
	// requestIDContextKey はリクエストコンテキストにリクエストIDを格納するためのキー。
	requestIDContextKey = contextKey("request_id")
)

// SessionResolver はセッショントークンからセッション状態を解決する。
type SessionResolver interface {
	CurrentSession(token string) model.Session
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 解決したセッション状態をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストも拒否せず、未認証状態として後続に渡す。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				token = cookie.Value
			}

			session := resolver.CurrentSession(token)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// RequireSession は認証済みセッションを必須とするミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。未認証リクエストには401を返す。
func RequireSession() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !SessionFromContext(r.Context()).Authenticated() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッション状態を取得する。
// セッションミドルウェアを通過していない場合は未認証を返す。
func SessionFromContext(ctx context.Context) model.Session {
	session, ok := ctx.Value(sessionContextKey).(model.Session)
	if !ok {
		return model.Session{Status: model.SessionUnauthenticated}
	}
	return session
}

// ContextWithSession はコンテキストにセッション状態を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのDiscord IDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	session := SessionFromContext(ctx)
	if !session.Authenticated() || session.Identity.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.Identity.ID, nil
}
