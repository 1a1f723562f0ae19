// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Discord OAuth
	DiscordClientID     string `env:"DISCORD_CLIENT_ID,required,notEmpty"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET,required,notEmpty"`
	DiscordRedirectURL  string `env:"DISCORD_REDIRECT_URL,required,notEmpty"`

	// Session
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge int    `env:"SESSION_MAX_AGE" envDefault:"86400"`

	// Moderation API
	ModAPIBaseURL  string        `env:"MOD_API_BASE_URL" envDefault:"http://localhost:3024/api/v2"`
	ModAPIUsername string        `env:"MOD_API_USERNAME,required,notEmpty"`
	ModAPIPassword string        `env:"MOD_API_PASSWORD,required,notEmpty"`
	ModAPITimeout  time.Duration `env:"MOD_API_TIMEOUT" envDefault:"10s"`

	// Appeal
	AppealGuildID string        `env:"APPEAL_GUILD_ID" envDefault:"960606557622657026"`
	PendingTTL    time.Duration `env:"PENDING_TTL" envDefault:"10m"`

	// Rate Limit (req/min/user)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitSubmit  int `env:"RATE_LIMIT_SUBMIT" envDefault:"5"`

	// Audit log (optional)
	DatabaseURL             string `env:"DATABASE_URL"`
	SubmissionRetentionDays int    `env:"SUBMISSION_RETENTION_DAYS" envDefault:"90"`

	// Shared submission lock (optional)
	RedisURL string `env:"REDIS_URL"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定または空の場合は、該当するキーをすべて列挙した
// env.AggregateErrorをラップしたエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ModAPIBaseURL = strings.TrimRight(cfg.ModAPIBaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// AuditEnabled は監査ログ用のデータベースが設定されているかを返す。
func (c *Config) AuditEnabled() bool {
	return c.DatabaseURL != ""
}
