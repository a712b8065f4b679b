// Package ingest はカタログフィードのバックグラウンド取り込み処理を提供する。
// 定期的にMRSSフィードを再取得し、カタログストアを更新する。
package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Refresher はカタログ取り込みの実行インターフェース。
type Refresher interface {
	// Refresh はフィードを再取得してカタログストアを更新する。
	Refresh(ctx context.Context) error
}

// Scheduler はカタログ取り込みの定期実行を行う。
// 取り込みの失敗は現在のカタログを維持したまま次のサイクルへ持ち越す。
type Scheduler struct {
	refresher Refresher
	logger    *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(refresher Refresher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		logger:    logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("カタログ取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("カタログ取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()

	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("カタログ取り込みに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	duration := time.Since(start)
	s.logger.Info("カタログ取り込みサイクルが完了しました",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
