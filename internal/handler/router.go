package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/banappeal/internal/metrics"
	"github.com/hitoshi/banappeal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver middleware.SessionResolver
	CSRFConfig      middleware.CSRFConfig
	RateLimiter     *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 申し立て
	AppealService AppealServiceInterface

	// 運用
	// HealthCheckerがnilの場合はDB疎通を確認しない。
	// MetricsHandlerがnilの場合は/metricsを公開しない。
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	Metrics        metrics.MetricsCollector
	Logger         *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Session → Logging → RateLimit(General) → CSRF
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics, logger)
	appealHandler := NewAppealHandler(deps.AppealService, logger)
	submitLimit := deps.RateLimiter.SubmissionMiddleware()

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/", redirectRoot)

		// 認証ルート（OAuthフロー）
		r.Route("/auth", func(r chi.Router) {
			r.Get("/discord/login", authHandler.Login)
			r.Get("/discord/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 申し立てページ（未ログイン時はログイン画面を表示するため認証不要）
		r.Get(PagePath, appealHandler.Page)
		r.With(submitLimit).Post(PagePath, appealHandler.SubmitForm)

		// 申し立てAPI
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession())
			r.Get("/api/appeal/state", appealHandler.State)
			r.With(submitLimit).Post("/api/appeal", appealHandler.Submit)
		})
	})

	return r
}
