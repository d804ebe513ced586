package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/place-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/metrics"
)

// SeatCounter は予約済み座席数と総座席数を返すインターフェース
type SeatCounter interface {
	CountSeats(ctx context.Context) (reserved int, total int, err error)
}

// InventoryGaugeUpdater は座席数ゲージを定期的に更新するワーカー
type InventoryGaugeUpdater struct {
	seatService SeatCounter
	metrics     *metrics.Metrics
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// DefaultInventoryInterval は間隔が0以下のときに使う更新間隔
const DefaultInventoryInterval = 30 * time.Second

// NewInventoryGaugeUpdater は新しいワーカーを作成
func NewInventoryGaugeUpdater(sc SeatCounter, m *metrics.Metrics, interval time.Duration) *InventoryGaugeUpdater {
	if interval <= 0 {
		interval = DefaultInventoryInterval
	}
	return &InventoryGaugeUpdater{
		seatService: sc,
		metrics:     m,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はワーカーを開始（起動直後に1回更新する）
func (u *InventoryGaugeUpdater) Start(ctx context.Context) {
	logger.Info("座席数ゲージ更新ワーカー開始", zap.Duration("interval", u.interval))

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()
	defer close(u.doneCh)

	u.update(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("座席数ゲージ更新ワーカー停止（コンテキストキャンセル）")
			return
		case <-u.stopCh:
			logger.Info("座席数ゲージ更新ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			u.update(ctx)
		}
	}
}

// Stop はワーカーを停止
func (u *InventoryGaugeUpdater) Stop() {
	close(u.stopCh)
	<-u.doneCh
}

// update は座席数を取得してゲージに反映する
func (u *InventoryGaugeUpdater) update(ctx context.Context) {
	log := logger.Get()

	reserved, total, err := u.seatService.CountSeats(ctx)
	if err != nil {
		log.Error("座席数の取得に失敗", zap.Error(err))
		return
	}

	u.metrics.SetSeatCounts(reserved, total)
	log.Debug("座席数ゲージを更新", zap.Int("reserved", reserved), zap.Int("total", total))
}
