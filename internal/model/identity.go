// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はDiscordで認証されたユーザーを表す。
// セッショントークンから復元され、セッションの有効期間中は変更されない。
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Email       string `json:"email,omitempty"`
}

// SessionStatus はセッションの解決状態を表す。
type SessionStatus string

const (
	SessionLoading         SessionStatus = "loading"
	SessionAuthenticated   SessionStatus = "authenticated"
	SessionUnauthenticated SessionStatus = "unauthenticated"
)

// Session は現在のリクエストに紐づくセッション状態。
// StatusがSessionAuthenticatedの場合のみIdentityが設定される。
type Session struct {
	Status   SessionStatus
	Identity *Identity
}

// Authenticated は認証済みセッションかどうかを返す。
func (s Session) Authenticated() bool {
	return s.Status == SessionAuthenticated && s.Identity != nil
}

// IssuedSession はログイン時に発行された署名付きセッショントークン。
type IssuedSession struct {
	Token     string
	Identity  Identity
	ExpiresAt time.Time
}
