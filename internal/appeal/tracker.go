package appeal

import (
	"sync"
	"time"

	"github.com/hitoshi/banappeal/internal/model"
)

// trackEntry はユーザーごとの送信世代と送信直後の申し立て。
type trackEntry struct {
	generation  uint64
	pending     *model.Appeal
	submittedAt time.Time
}

// Tracker はユーザーごとの送信世代カウンタを管理する。
//
// 読み込みは開始時の世代を記録し、完了時に世代が進んでいれば
// （読み込み中に送信が完了していれば）取得した申し立ては古いものとして破棄する。
// 送信直後の申し立てはpendingTTLの間、リモートが未反映でも表示に使う。
type Tracker struct {
	mu         sync.Mutex
	entries    map[string]*trackEntry
	pendingTTL time.Duration
	now        func() time.Time
}

// NewTracker はTrackerを生成する。
func NewTracker(pendingTTL time.Duration) *Tracker {
	return &Tracker{
		entries:    make(map[string]*trackEntry),
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// Generation はユーザーの現在の送信世代を返す。
func (t *Tracker) Generation(identityID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[identityID]; ok {
		return e.generation
	}
	return 0
}

// MarkSubmitted は送信成功を記録して世代を進め、表示用の申し立てを返す。
func (t *Tracker) MarkSubmitted(identityID string) *model.Appeal {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.pruneLocked(now)

	e, ok := t.entries[identityID]
	if !ok {
		e = &trackEntry{}
		t.entries[identityID] = e
	}
	e.generation++
	e.pending = &model.Appeal{Status: model.AppealStatusPendingReview}
	e.submittedAt = now

	return copyAppeal(e.pending)
}

// Reconcile は読み込み結果と送信状態を突き合わせ、表示に使う申し立てを返す。
func (t *Tracker) Reconcile(identityID string, startGeneration uint64, fetched *model.Appeal) *model.Appeal {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[identityID]
	if !ok {
		return fetched
	}

	// 読み込み中に送信が完了した: 取得結果は送信前のもの
	if e.generation > startGeneration && e.pending != nil {
		return copyAppeal(e.pending)
	}

	if fetched != nil {
		e.pending = nil
		return fetched
	}

	if e.pending != nil && t.now().Sub(e.submittedAt) < t.pendingTTL {
		return copyAppeal(e.pending)
	}
	return nil
}

// pruneLocked はpendingTTLを過ぎた送信直後の申し立てを破棄する。
// 世代は読み込み中の比較に使うため保持する。
func (t *Tracker) pruneLocked(now time.Time) {
	for _, e := range t.entries {
		if e.pending != nil && now.Sub(e.submittedAt) >= t.pendingTTL {
			e.pending = nil
			e.submittedAt = time.Time{}
		}
	}
}

func copyAppeal(a *model.Appeal) *model.Appeal {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
