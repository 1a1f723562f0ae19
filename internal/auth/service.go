// Package auth はDiscord OAuth認証フローとセッショントークンの管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/banappeal/internal/model"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ID         string
	Username   string
	GlobalName string
	Avatar     string // アバターのハッシュ。未設定の場合は空
	Email      string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// Service は認証に関するビジネスロジックを提供する。
// セッションはサーバー側に保存せず、署名付きトークンとしてクライアントに渡す。
type Service struct {
	oauth  OAuthProvider
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		oauth:  oauth,
		tokens: tokens,
		logger: logger,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッショントークンを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.IssuedSession, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. Identityを組み立てる
	identity := model.Identity{
		ID:          userInfo.ID,
		DisplayName: DisplayName(userInfo),
		AvatarURL:   AvatarURL(userInfo.ID, userInfo.Avatar),
		Email:       userInfo.Email,
	}

	// 3. セッショントークンを発行
	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("user logged in",
		slog.String("user_id", identity.ID),
		slog.String("provider", "discord"),
	)

	return &model.IssuedSession{
		Token:     token,
		Identity:  identity,
		ExpiresAt: expiresAt,
	}, nil
}

// CurrentSession はセッショントークンからセッション状態を解決する。
// トークンがない・不正・期限切れの場合は未認証を返す。
func (s *Service) CurrentSession(token string) model.Session {
	if token == "" {
		return model.Session{Status: model.SessionUnauthenticated}
	}

	identity, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("session token rejected", slog.String("error", err.Error()))
		return model.Session{Status: model.SessionUnauthenticated}
	}

	return model.Session{
		Status:   model.SessionAuthenticated,
		Identity: identity,
	}
}
