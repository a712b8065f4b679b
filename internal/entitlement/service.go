// Package entitlement は解放済みコレクション集合の付与ロジックを提供する。
// 付与は単調増加であり、一度解放されたコレクションが取り消されることはない。
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/starstream/internal/model"
)

// ProfileStore はプロファイルストアの読み書きインターフェース。
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SetUnlockedCollections(ctx context.Context, userID string, collections []string) error
}

// userLock はユーザーごとのミューテックスとアクセス時刻を保持する。
type userLock struct {
	mu         sync.Mutex
	lastAccess time.Time
}

// Service は解放付与のビジネスロジックを提供する。
// プロファイルストアはread-modify-writeに対するトランザクションを提供しないため、
// 同一ユーザーへの書き込みはプロセス内でミューテックスにより直列化する。
type Service struct {
	store  ProfileStore
	logger *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*userLock

	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewService はServiceの新しいインスタンスを生成する。
// バックグラウンドで未使用ロックエントリのクリーンアップを開始する。
func NewService(store ProfileStore, logger *slog.Logger) *Service {
	s := &Service{
		store:           store,
		logger:          logger,
		locks:           make(map[string]*userLock),
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Grant は指定ユーザーにコレクションの解放を付与する。
// 既存集合との和集合を計算し、変化がある場合のみ書き込む。
// 戻り値は集合が実際に変化したかどうかを示す。
func (s *Service) Grant(ctx context.Context, userID, collectionID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("ユーザーIDが空です")
	}
	if collectionID == "" {
		return false, fmt.Errorf("コレクションIDが空です")
	}

	lock := s.getOrCreateLock(userID)
	lock.mu.Lock()
	defer lock.mu.Unlock()

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("プロファイルの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return false, model.NewProfileNotFoundError(userID)
	}

	merged, changed := union(profile.UnlockedCollections, collectionID)
	if !changed {
		s.logger.Info("コレクションは解放済みです",
			slog.String("user_id", userID),
			slog.String("collection_id", collectionID),
		)
		return false, nil
	}

	if err := s.store.SetUnlockedCollections(ctx, userID, merged); err != nil {
		return false, fmt.Errorf("解放済みコレクションの書き込みに失敗しました: %w", err)
	}

	s.logger.Info("コレクションを解放しました",
		slog.String("user_id", userID),
		slog.String("collection_id", collectionID),
		slog.Int("total_collections", len(merged)),
	)

	return true, nil
}

// union は既存集合にコレクションIDを加えた和集合を返す。
// 重複を除去し、書き込みの決定性のためソートした新しいスライスを返す。
func union(existing []string, collectionID string) ([]string, bool) {
	seen := make(map[string]struct{}, len(existing)+1)
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	if _, ok := seen[collectionID]; ok {
		return existing, false
	}
	seen[collectionID] = struct{}{}

	merged := make([]string, 0, len(seen))
	for id := range seen {
		merged = append(merged, id)
	}
	sort.Strings(merged)

	return merged, true
}

// getOrCreateLock はユーザーのミューテックスを取得または作成する。
func (s *Service) getOrCreateLock(userID string) *userLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	if lock, exists := s.locks[userID]; exists {
		lock.lastAccess = time.Now()
		return lock
	}

	lock := &userLock{lastAccess: time.Now()}
	s.locks[userID] = lock
	return lock
}

// LockCount は現在管理されているロックエントリ数を返す。
// テストおよびメトリクス用。
func (s *Service) LockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// cleanupLoop はバックグラウンドで未使用ロックを定期的にクリーンアップする。
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がcleanupIntervalの2倍を超えたエントリを削除する。
// ロック保持中のエントリはTryLockで検出してスキップする。
func (s *Service) cleanup() {
	ttl := s.cleanupInterval * 2
	now := time.Now()

	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	for userID, lock := range s.locks {
		if now.Sub(lock.lastAccess) <= ttl {
			continue
		}
		if !lock.mu.TryLock() {
			continue
		}
		lock.mu.Unlock()
		delete(s.locks, userID)
	}
}
