package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/banappeal/internal/model"
)

// ErrInvalidSession はセッショントークンが不正または期限切れの場合のエラー。
var ErrInvalidSession = errors.New("invalid session token")

// sessionClaims はセッショントークンのクレーム。
type sessionClaims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer は署名付きセッショントークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, maxAge time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Issue はIdentityを埋め込んだセッショントークンを発行する。
func (i *TokenIssuer) Issue(identity model.Identity) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("session secret is empty")
	}
	if strings.TrimSpace(identity.ID) == "" {
		return "", time.Time{}, fmt.Errorf("identity id is required")
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.maxAge)
	claims := sessionClaims{
		Name:    identity.DisplayName,
		Picture: identity.AvatarURL,
		Email:   identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse はセッショントークンを検証し、Identityを復元する。
// 署名方式はHS256のみ受け付ける。
func (i *TokenIssuer) Parse(raw string) (*model.Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrInvalidSession
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || token == nil || !token.Valid {
		return nil, ErrInvalidSession
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidSession
	}

	return &model.Identity{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
		Email:       claims.Email,
	}, nil
}
