// Package modapi はモデレーションバックエンドのREST APIクライアントを提供する。
// BAN情報、ユーザー、申し立ての参照と申し立ての作成を行う。
package modapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/banappeal/internal/metrics"
	"github.com/hitoshi/banappeal/internal/model"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "banappeal/1.0"
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20
)

// 操作名（メトリクスとログのラベル）
const (
	OpGetBan          = "get_ban"
	OpGetUser         = "get_user"
	OpGetLatestAppeal = "get_latest_appeal"
	OpCreateAppeal    = "create_appeal"
)

// Config はモデレーションAPIへの接続設定。
// 認証情報はプロセス環境から直接読まず、呼び出し元が注入する。
type Config struct {
	BaseURL   string // 例: http://localhost:3024/api/v2
	Username  string // Basic認証ユーザー名
	Password  string // Basic認証パスワード
	Timeout   time.Duration
	UserAgent string
}

// Client はモデレーションAPIのクライアント。
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewClient はClientを生成する。
// httpClientがnilの場合はConfig.Timeoutを設定したクライアントを使用する。
func NewClient(config Config, httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		config:     config,
		logger:     logger,
		metrics:    m,
	}
}

// IsSuccess はモデレーションAPIの成功ステータス（200または304）かどうかを返す。
func IsSuccess(status int) bool {
	return status == http.StatusOK || status == http.StatusNotModified
}

// GetBan はDiscordユーザーIDに対応するBANレコードを取得する。
// 成功ステータス以外、または空ボディ・nullの場合はBANなしとして(nil, nil)を返す。
func (c *Client) GetBan(ctx context.Context, identityID string) (*model.BanRecord, error) {
	var ban model.BanRecord
	found, err := c.getJSON(ctx, OpGetBan, "/discord/bans/"+url.PathEscape(identityID), &ban)
	if err != nil || !found {
		return nil, err
	}
	return &ban, nil
}

// GetUser はDiscordユーザーIDに対応するストア側のユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, identityID string) (*model.UserProfile, error) {
	var user model.UserProfile
	found, err := c.getJSON(ctx, OpGetUser, "/users/"+url.PathEscape(identityID), &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// GetLatestAppeal はストア側ユーザーIDの最新の申し立てを取得する。
func (c *Client) GetLatestAppeal(ctx context.Context, userProfileID string) (*model.Appeal, error) {
	var appeal model.Appeal
	found, err := c.getJSON(ctx, OpGetLatestAppeal, "/appeals/"+url.PathEscape(userProfileID)+"/latest", &appeal)
	if err != nil || !found {
		return nil, err
	}
	return &appeal, nil
}

// createAppealRequest は申し立て作成リクエストのボディ。
type createAppealRequest struct {
	NewAppealData model.Appeal `json:"newAppealData"`
}

// CreateAppeal は申し立てを作成し、レスポンスのHTTPステータスを返す。
// 受理されたかどうかの判定（IsSuccess）は呼び出し元が行う。
func (c *Client) CreateAppeal(ctx context.Context, userProfileID string, appeal model.Appeal) (int, error) {
	body, err := json.Marshal(createAppealRequest{NewAppealData: appeal})
	if err != nil {
		return 0, fmt.Errorf("failed to encode appeal: %w", err)
	}

	resp, err := c.do(ctx, OpCreateAppeal, http.MethodPost, "/appeals/"+url.PathEscape(userProfileID)+"/create", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if !IsSuccess(resp.StatusCode) {
		c.logger.Warn("moderation API rejected appeal",
			slog.String("user_profile_id", userProfileID),
			slog.Int("http_status", resp.StatusCode),
		)
	}

	return resp.StatusCode, nil
}

// getJSON はGETリクエストを送り、成功ステータスの場合にボディをdstへデコードする。
// 戻り値のboolはリソースが存在したかどうか。
func (c *Client) getJSON(ctx context.Context, op, path string, dst any) (bool, error) {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		c.logger.Debug("moderation API resource absent",
			slog.String("operation", op),
			slog.Int("http_status", resp.StatusCode),
		)
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	// 304はボディを持たない。nullも不在として扱う。
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		return false, fmt.Errorf("%s: failed to parse response: %w", op, err)
	}

	return true, nil
}

// do は認証ヘッダーを付与してリクエストを実行し、メトリクスを記録する。
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordModAPILatency(op, time.Since(start))
	if err != nil {
		cancel()
		c.metrics.RecordModAPIRequest(op, 0)
		c.logger.Error("moderation API request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	c.metrics.RecordModAPIRequest(op, resp.StatusCode)

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose はボディのクローズ時にリクエストコンテキストを解放する。
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
