// Package poll は管理者セッションの未読通知数のバックグラウンドポーリングを提供する。
// 一定間隔で期限切れセッションを削除し、有効な管理者セッションごとに
// 上流APIから未読数を取得してインメモリキャッシュに反映する。
package poll

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/drainman/internal/model"
	"github.com/hitoshi/drainman/internal/repository"
)

// UnreadCounter は上流APIの未読数取得のインターフェース。
type UnreadCounter interface {
	// UnreadCount は指定トークンのユーザーの未読通知数を取得する。
	UnreadCount(ctx context.Context, token string) (int64, error)
}

// Metrics はポーラーが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordPollCycle()
	RecordPollError()
	RecordSessionsPruned(count int64)
}

// Poller は未読数ポーリングと期限切れセッションの削除を行う。
// 各サイクルは前のサイクルの完了を待たずに値を上書きしない。
// 取得はセッションごとに独立しており、1件の失敗が他のセッションに影響しない。
type Poller struct {
	sessionRepo    repository.SessionRepository
	counter        UnreadCounter
	cache          *Cache
	logger         *slog.Logger
	metrics        Metrics // nil可
	maxConcurrency int
}

// NewPoller はPollerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewPoller(
	sessionRepo repository.SessionRepository,
	counter UnreadCounter,
	cache *Cache,
	logger *slog.Logger,
	metrics Metrics,
	maxConcurrency int,
) *Poller {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Poller{
		sessionRepo:    sessionRepo,
		counter:        counter,
		cache:          cache,
		logger:         logger,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでポーラーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// キャンセル後に完了した取得結果はキャッシュに反映されない。
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("未読数ポーラーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", p.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error("ポーリングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("未読数ポーラーを停止しました")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("ポーリングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はポーリングサイクルを1回実行する。
// 期限切れセッションの削除、消えたセッションのキャッシュ回収、
// 管理者セッションごとの未読数取得を行う。
// semaphoreパターンで最大並列数を制御する。
func (p *Poller) RunOnce(ctx context.Context) error {
	start := time.Now()

	if p.metrics != nil {
		p.metrics.RecordPollCycle()
	}

	// 期限切れセッションを削除
	pruned, err := p.sessionRepo.DeleteExpired(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordPollError()
		}
		return err
	}
	if pruned > 0 {
		if p.metrics != nil {
			p.metrics.RecordSessionsPruned(pruned)
		}
		p.logger.Info("期限切れセッションを削除しました",
			slog.Int64("pruned_count", pruned),
		)
	}

	sessions, err := p.sessionRepo.ListActive(ctx)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordPollError()
		}
		return err
	}

	// 有効セッションのIDを集め、消えたセッションのキャッシュを回収
	activeIDs := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		activeIDs[s.ID] = struct{}{}
	}
	p.cache.Retain(activeIDs)

	// 管理者セッションのみ未読数を取得する
	var admins []*model.StoredSession
	for _, s := range sessions {
		var profile model.Profile
		if err := json.Unmarshal(s.Profile, &profile); err != nil {
			// 壊れたプロフィールはポーリング対象にしない。
			// 行の破棄はセッションマネージャのCurrentが行う。
			continue
		}
		if profile.Role == model.RoleAdmin {
			admins = append(admins, s)
		}
	}

	if len(admins) == 0 {
		return nil
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, p.maxConcurrency)
	var wg sync.WaitGroup

	for _, s := range admins {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(s *model.StoredSession) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			count, err := p.counter.UnreadCount(ctx, s.Token)
			if err != nil {
				if p.metrics != nil {
					p.metrics.RecordPollError()
				}
				p.logger.Error("未読数の取得に失敗しました",
					slog.String("session_id", s.ID),
					slog.String("error", err.Error()),
				)
				return
			}

			// キャンセル後に完了した結果は捨てる
			if ctx.Err() != nil {
				return
			}

			p.cache.Set(s.ID, count)
		}(s)
	}

	wg.Wait()

	duration := time.Since(start)
	p.logger.Info("ポーリングサイクルが完了しました",
		slog.Int("session_count", len(sessions)),
		slog.Int("admin_count", len(admins)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
