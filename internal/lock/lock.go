// Package lock は申し立て送信の排他制御を提供する。
// 同一ユーザーによる二重送信を防ぐため、キー単位のトライロックを提供する。
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotHeld はロックを保持していないトークンで解放しようとした場合のエラー。
var ErrNotHeld = errors.New("lock not held")

// Locker はキー単位の排他ロック。
// TryLockは待機せず、取得できなければok=falseを返す。
// ttlを過ぎたロックは解放されたものとみなす（プロセス異常終了時の保険）。
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker はプロセス内で完結するLocker実装。
// 単一インスタンス構成で使用する。
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryLocker はMemoryLockerを生成する。
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// TryLock はロックの取得を試みる。
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.entries[key]; held && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.entries[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock はトークンが一致する場合にロックを解放する。
func (l *MemoryLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, held := l.entries[key]
	if !held || e.token != token {
		return ErrNotHeld
	}
	delete(l.entries, key)
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
