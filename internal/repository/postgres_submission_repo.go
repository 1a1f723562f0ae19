package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/banappeal/internal/model"
)

// PostgresSubmissionRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

// Record は送信結果を1件記録する。
// CreatedAtが未設定の場合は現在時刻を使用する。
func (r *PostgresSubmissionRepo) Record(ctx context.Context, attempt *model.SubmissionAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO appeal_submissions (id, identity_id, user_profile_id, guild_id, outcome, remote_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, attempt.IdentityID, attempt.UserProfileID, attempt.GuildID,
		string(attempt.Outcome), attempt.RemoteStatus, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appeal submission: %w", err)
	}

	return nil
}

// ListByIdentity は指定DiscordユーザーIDの送信履歴を新しい順に最大limit件取得する。
func (r *PostgresSubmissionRepo) ListByIdentity(ctx context.Context, identityID string, limit int) ([]*model.SubmissionAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identity_id, user_profile_id, guild_id, outcome, remote_status, created_at
		 FROM appeal_submissions
		 WHERE identity_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		identityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeal submissions: %w", err)
	}
	defer rows.Close()

	var attempts []*model.SubmissionAttempt
	for rows.Next() {
		a := &model.SubmissionAttempt{}
		var outcome string
		if err := rows.Scan(&a.ID, &a.IdentityID, &a.UserProfileID, &a.GuildID, &outcome, &a.RemoteStatus, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appeal submission: %w", err)
		}
		a.Outcome = model.SubmissionOutcome(outcome)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate appeal submissions: %w", err)
	}

	return attempts, nil
}

// DeleteOlderThan は指定時刻より前の送信履歴を削除し、削除件数を返す。
func (r *PostgresSubmissionRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM appeal_submissions WHERE created_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old appeal submissions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
