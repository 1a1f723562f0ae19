// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/banappeal/internal/model"
)

// SubmissionRepository は申し立て送信の監査ログの永続化インターフェース。
type SubmissionRepository interface {
	// Record は送信結果を1件記録する。
	Record(ctx context.Context, attempt *model.SubmissionAttempt) error

	// ListByIdentity は指定DiscordユーザーIDの送信履歴を新しい順に最大limit件取得する。
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]*model.SubmissionAttempt, error)

	// DeleteOlderThan は指定時刻より前の送信履歴を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
