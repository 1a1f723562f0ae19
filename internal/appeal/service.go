// Package appeal はBAN状態の判定と申し立て送信のワークフローを提供する。
//
// 画面状態は次のパイプラインで決定する:
//
//	セッション解決 → BAN取得 ∥ ユーザー取得 → 最新の申し立て取得 → 画面決定
//
// 申し立て取得はユーザー取得の結果（ストア側ユーザーID）に依存する。
package appeal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/banappeal/internal/lock"
	"github.com/hitoshi/banappeal/internal/metrics"
	"github.com/hitoshi/banappeal/internal/modapi"
	"github.com/hitoshi/banappeal/internal/model"
)

// ErrSubmitWithoutBan はBANレコードなしで申し立てを送信しようとした場合のエラー。
// 呼び出し側の不整合であり、回復手段はない。
var ErrSubmitWithoutBan = errors.New("impossible state: appeal submission without a ban")

const defaultLockTTL = 30 * time.Second

// ModerationAPI はワークフローが必要とするモデレーションAPIの操作。
type ModerationAPI interface {
	GetBan(ctx context.Context, identityID string) (*model.BanRecord, error)
	GetUser(ctx context.Context, identityID string) (*model.UserProfile, error)
	GetLatestAppeal(ctx context.Context, userProfileID string) (*model.Appeal, error)
	CreateAppeal(ctx context.Context, userProfileID string, appeal model.Appeal) (int, error)
}

// SubmissionRecorder は申し立て送信の監査ログを記録する。
type SubmissionRecorder interface {
	Record(ctx context.Context, attempt *model.SubmissionAttempt) error
}

// NopRecorder は何も記録しないSubmissionRecorder。
type NopRecorder struct{}

// Record は何もしない。
func (NopRecorder) Record(context.Context, *model.SubmissionAttempt) error { return nil }

// Config はワークフローの設定。
type Config struct {
	GuildID    string        // 申し立て先のDiscordギルドID
	PendingTTL time.Duration // 送信直後の申し立てを表示に使う期間
	LockTTL    time.Duration // 送信ロックの最大保持期間
}

// State は1回の読み込みで得られた画面状態。
type State struct {
	Session model.Session
	Ban     *model.BanRecord
	Profile *model.UserProfile
	Appeal  *model.Appeal
	View    model.ViewState

	// 読み込み開始時の送信世代
	generation uint64
}

// Service は申し立てワークフローを提供する。
type Service struct {
	api       ModerationAPI
	locker    lock.Locker
	tracker  *Tracker
	recorder SubmissionRecorder
	metrics  metrics.MetricsCollector
	config   Config
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	api ModerationAPI,
	locker lock.Locker,
	recorder SubmissionRecorder,
	m metrics.MetricsCollector,
	config Config,
	logger *slog.Logger,
) *Service {
	if config.LockTTL <= 0 {
		config.LockTTL = defaultLockTTL
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		api:      api,
		locker:   locker,
		tracker:  NewTracker(config.PendingTTL),
		recorder: recorder,
		metrics:  m,
		config:   config,
		logger:   logger,
	}
}

// LoadBanStatus はBANレコードを取得する。存在しない場合はnilを返す。
func (s *Service) LoadBanStatus(ctx context.Context, identityID string) (*model.BanRecord, error) {
	return s.api.GetBan(ctx, identityID)
}

// LoadUserProfile はストア側のユーザーを取得する。存在しない場合はnilを返す。
func (s *Service) LoadUserProfile(ctx context.Context, identityID string) (*model.UserProfile, error) {
	return s.api.GetUser(ctx, identityID)
}

// LoadLatestAppeal は最新の申し立てを取得する。存在しない場合はnilを返す。
func (s *Service) LoadLatestAppeal(ctx context.Context, userProfileID string) (*model.Appeal, error) {
	return s.api.GetLatestAppeal(ctx, userProfileID)
}

// Load はセッションに対応する画面状態を読み込む。
// 未認証・解決中のセッションではモデレーションAPIを呼び出さない。
func (s *Service) Load(ctx context.Context, session model.Session) (*State, error) {
	state := &State{Session: session}
	if !session.Authenticated() {
		state.View = ResolveView(session, nil, nil)
		return state, nil
	}

	identityID := session.Identity.ID
	startGeneration := s.tracker.Generation(identityID)
	state.generation = startGeneration

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ban, err := s.LoadBanStatus(gctx, identityID)
		if err != nil {
			return fmt.Errorf("failed to load ban status: %w", err)
		}
		state.Ban = ban
		return nil
	})
	g.Go(func() error {
		profile, err := s.LoadUserProfile(gctx, identityID)
		if err != nil {
			return fmt.Errorf("failed to load user profile: %w", err)
		}
		state.Profile = profile
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var fetched *model.Appeal
	if state.Profile != nil {
		appeal, err := s.LoadLatestAppeal(ctx, state.Profile.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest appeal: %w", err)
		}
		fetched = appeal
	}

	state.Appeal = s.tracker.Reconcile(identityID, startGeneration, fetched)
	state.View = ResolveView(session, state.Ban, state.Appeal)
	return state, nil
}

// SubmitDraft は現在の状態を読み込み、申し立て可能な場合にのみ送信する。
// 送信後の状態は再取得せず、審査待ちの申し立てを設定して返す。
func (s *Service) SubmitDraft(ctx context.Context, session model.Session, draft model.FormDraft) (*State, error) {
	if !session.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}

	state, err := s.Load(ctx, session)
	if err != nil {
		return nil, err
	}

	switch state.View {
	case model.ViewNotBanned:
		return state, model.NewNotBannedError()
	case model.ViewBannedPending:
		return state, model.NewAppealExistsError()
	}

	appeal, err := s.submit(ctx, *session.Identity, state.Ban, draft, state.generation)
	if err != nil {
		if appeal != nil {
			state.Appeal = appeal
			state.View = ResolveView(session, state.Ban, state.Appeal)
		}
		return state, err
	}

	state.Appeal = appeal
	state.View = ResolveView(session, state.Ban, state.Appeal)
	return state, nil
}

// Submit は申し立てを作成する。
//
// ストア側ユーザーIDを再取得し、固定のギルドIDとBANレコードのユーザー情報、
// フォーム入力、セッションのメールアドレスで申し立てを作成する。
// banがnilの場合はネットワーク呼び出しを行わずErrSubmitWithoutBanを返す。
// 同一ユーザーの送信が実行中の場合はSUBMISSION_IN_PROGRESSエラーを返す。
// ロック取得後に既存の申し立てが見つかった場合は、その申し立てとAPPEAL_EXISTSエラーを返す。
func (s *Service) Submit(ctx context.Context, identity model.Identity, ban *model.BanRecord, draft model.FormDraft) (*model.Appeal, error) {
	return s.submit(ctx, identity, ban, draft, s.tracker.Generation(identity.ID))
}

// submit はstartGeneration時点の読み込み結果に基づいて申し立てを作成する。
func (s *Service) submit(ctx context.Context, identity model.Identity, ban *model.BanRecord, draft model.FormDraft, startGeneration uint64) (*model.Appeal, error) {
	if ban == nil {
		return nil, ErrSubmitWithoutBan
	}

	draft, err := NormalizeDraft(draft)
	if err != nil {
		return nil, err
	}

	token, ok, err := s.locker.TryLock(ctx, identity.ID, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire submission lock: %w", err)
	}
	if !ok {
		return nil, model.NewSubmissionInProgressError()
	}
	defer func() {
		// リクエストのキャンセル後も解放できるよう独立したコンテキストを使う
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locker.Unlock(unlockCtx, identity.ID, token); err != nil {
			s.logger.Warn("failed to release submission lock",
				slog.String("identity_id", identity.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	// 読み込み後に同一ユーザーの送信が完了していれば作成しない
	if existing := s.tracker.Reconcile(identity.ID, startGeneration, nil); existing != nil {
		s.logger.Info("appeal already submitted",
			slog.String("identity_id", identity.ID),
		)
		return existing, model.NewAppealExistsError()
	}

	attempt := &model.SubmissionAttempt{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		GuildID:    s.config.GuildID,
	}

	profile, err := s.api.GetUser(ctx, identity.ID)
	if err != nil {
		s.finish(ctx, attempt, model.OutcomeTransportErr, 0)
		return nil, fmt.Errorf("failed to reload user profile: %w", err)
	}
	if profile == nil {
		s.finish(ctx, attempt, model.OutcomeNoProfile, 0)
		return nil, model.NewUserNotFoundError()
	}
	attempt.UserProfileID = profile.ID

	// 他のインスタンスで作成された申し立てはリモートで確認する
	existing, err := s.api.GetLatestAppeal(ctx, profile.ID)
	if err != nil {
		s.finish(ctx, attempt, model.OutcomeTransportErr, 0)
		return nil, fmt.Errorf("failed to reload latest appeal: %w", err)
	}
	if existing != nil {
		s.logger.Info("appeal already exists",
			slog.String("identity_id", identity.ID),
			slog.String("user_profile_id", profile.ID),
		)
		return existing, model.NewAppealExistsError()
	}

	newAppeal := model.Appeal{
		GuildID:       s.config.GuildID,
		UserID:        ban.User.ID,
		Username:      ban.User.Username,
		Discriminator: ban.User.Discriminator,
		Avatar:        ban.User.Avatar,
		Reason:        draft.Reason,
		Solution:      draft.Solution,
		Future:        draft.Future,
		Extra:         draft.Extra,
		Email:         identity.Email,
	}

	status, err := s.api.CreateAppeal(ctx, profile.ID, newAppeal)
	if err != nil {
		s.finish(ctx, attempt, model.OutcomeTransportErr, 0)
		return nil, fmt.Errorf("failed to create appeal: %w", err)
	}
	if !modapi.IsSuccess(status) {
		s.finish(ctx, attempt, model.OutcomeRejected, status)
		return nil, model.NewAppealRejectedError(status)
	}

	s.finish(ctx, attempt, model.OutcomeAccepted, status)
	s.logger.Info("appeal submitted",
		slog.String("identity_id", identity.ID),
		slog.String("user_profile_id", profile.ID),
		slog.String("guild_id", s.config.GuildID),
	)

	return s.tracker.MarkSubmitted(identity.ID), nil
}

// finish は送信結果をメトリクスと監査ログに記録する。
// 監査ログの記録失敗は送信結果に影響させない。
func (s *Service) finish(ctx context.Context, attempt *model.SubmissionAttempt, outcome model.SubmissionOutcome, status int) {
	attempt.Outcome = outcome
	attempt.RemoteStatus = status
	attempt.CreatedAt = time.Now()

	s.metrics.RecordSubmission(string(outcome))

	if err := s.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.Error("failed to record submission attempt",
			slog.String("attempt_id", attempt.ID),
			slog.String("error", err.Error()),
		)
	}
}
