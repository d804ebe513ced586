package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/place-seat-reservation/internal/config"
	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
	redislock "github.com/sanosuguru/place-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/metrics"
)

const publishTimeout = 3 * time.Second

// EventPublisher は座席変更イベントの送信先
type EventPublisher interface {
	Publish(ctx context.Context, event seat.ChangedEvent) error
}

// SeatService は座席の予約・取消・参照を扱う
// lockManager と publisher は nil なら無効
type SeatService struct {
	seatRepo    seat.Repository
	lockManager redislock.LockManagerInterface
	publisher   EventPublisher
	metrics     *metrics.Metrics
	lockCfg     config.LockConfig
}

func NewSeatService(sr seat.Repository, lm redislock.LockManagerInterface, pub EventPublisher, m *metrics.Metrics, lockCfg config.LockConfig) *SeatService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &SeatService{seatRepo: sr, lockManager: lm, publisher: pub, metrics: m, lockCfg: lockCfg}
}

// ReserveSeats はラベルで指定された座席を全て予約する（全席成功か全席失敗）
func (s *SeatService) ReserveSeats(ctx context.Context, labels []string) ([]*seat.Seat, error) {
	if len(labels) == 0 {
		s.metrics.ReservationsTotal.WithLabelValues(metrics.StatusInvalid).Inc()
		return nil, seat.ErrInvalidRequest
	}
	unique := seat.UniqueLabels(labels)

	release, err := s.acquireLock(ctx, unique)
	if err != nil {
		s.metrics.ReservationsTotal.WithLabelValues(metrics.StatusLockFailed).Inc()
		return nil, err
	}
	defer release()

	found, err := s.seatRepo.FindByLabels(ctx, unique)
	if err != nil {
		s.metrics.ReservationsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}

	targets, err := seat.PlanReservation(unique, found)
	if err != nil {
		s.metrics.ReservationsTotal.WithLabelValues(reservationStatus(err)).Inc()
		return nil, err
	}

	if err := s.seatRepo.SaveAll(ctx, targets); err != nil {
		s.metrics.ReservationsTotal.WithLabelValues(reservationStatus(err)).Inc()
		return nil, err
	}

	s.metrics.ReservationsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	s.metrics.SeatsReservedTotal.Add(float64(len(targets)))
	logger.FromContext(ctx).Info("座席を予約しました", zap.Strings("labels", unique))

	s.publish(ctx, seat.NewChangedEvent(seat.ChangeReserved, targets))
	return targets, nil
}

// CancelReservation は座席の予約を取り消す
// 存在しないIDは何もせず (nil, nil) を返す
func (s *SeatService) CancelReservation(ctx context.Context, id int64) (*seat.Seat, error) {
	se, err := s.seatRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, seat.ErrSeatNotFound) {
			s.metrics.CancellationsTotal.WithLabelValues(metrics.StatusNoop).Inc()
			return nil, nil
		}
		s.metrics.CancellationsTotal.WithLabelValues(metrics.StatusError).Inc()
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}

	if err := se.Release(); err != nil {
		s.metrics.CancellationsTotal.WithLabelValues(metrics.StatusNotReserved).Inc()
		return nil, &seat.SeatsError{Err: err, Labels: []string{se.Label}}
	}

	if err := s.seatRepo.Save(ctx, se); err != nil {
		status := metrics.StatusError
		if seat.IsConflict(err) {
			status = metrics.StatusConflict
		}
		s.metrics.CancellationsTotal.WithLabelValues(status).Inc()
		return nil, err
	}

	s.metrics.CancellationsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	logger.FromContext(ctx).Info("座席の予約を取り消しました", zap.Int64("seat_id", se.ID), zap.String("label", se.Label))

	s.publish(ctx, seat.NewChangedEvent(seat.ChangeCancelled, []*seat.Seat{se}))
	return se, nil
}

// GetAllSeats は全座席をラベル順で返す
func (s *SeatService) GetAllSeats(ctx context.Context) ([]*seat.Seat, error) {
	return s.seatRepo.FindAll(ctx)
}

// GetSeat はIDから座席を取得する
func (s *SeatService) GetSeat(ctx context.Context, id int64) (*seat.Seat, error) {
	return s.seatRepo.FindByID(ctx, id)
}

// GetReservedLabels は予約済み座席のラベルをソートして返す
func (s *SeatService) GetReservedLabels(ctx context.Context) ([]string, error) {
	seats, err := s.seatRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return seat.ReservedLabels(seats), nil
}

// CountSeats は予約済み座席数と総座席数を返す
func (s *SeatService) CountSeats(ctx context.Context) (reserved int, total int, err error) {
	return s.seatRepo.CountReserved(ctx)
}

// ProvisionSeats はラベルから空席を一括作成し、新規作成数を返す（既存ラベルはスキップ）
func (s *SeatService) ProvisionSeats(ctx context.Context, labels []string) (int, error) {
	seats := make([]*seat.Seat, 0, len(labels))
	for _, l := range seat.UniqueLabels(labels) {
		se := seat.NewSeat(l)
		if err := se.Validate(); err != nil {
			return 0, &seat.SeatsError{Err: err, Labels: []string{l}}
		}
		seats = append(seats, se)
	}
	if len(seats) == 0 {
		return 0, seat.ErrInvalidRequest
	}
	return s.seatRepo.CreateBulk(ctx, seats)
}

// acquireLock は座席集合の分散ロックを取得し、解放関数を返す
// Redis 自体の障害時はロックなしで続行する（整合性は楽観的ロックで担保）
func (s *SeatService) acquireLock(ctx context.Context, labels []string) (func(), error) {
	noop := func() {}
	if s.lockManager == nil {
		return noop, nil
	}

	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, buildSeatLockKey(labels), s.lockCfg.TTL, s.lockCfg.MaxRetries, s.lockCfg.RetryInterval)
	if err != nil {
		s.metrics.DistributedLockDuration.WithLabelValues("acquire", "failed").Observe(time.Since(start).Seconds())
		if errors.Is(err, redislock.ErrLockNotAcquired) {
			return nil, &seat.SeatsError{Err: seat.ErrSeatBusy, Labels: labels}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.FromContext(ctx).Warn("分散ロックを利用できないため、ロックなしで続行します", zap.Error(err))
		return noop, nil
	}
	s.metrics.DistributedLockDuration.WithLabelValues("acquire", "success").Observe(time.Since(start).Seconds())

	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("ロック解放に失敗", zap.Error(err))
		}
	}, nil
}

// publish はイベントを送信する。失敗してもログのみで処理結果には影響しない
func (s *SeatService) publish(ctx context.Context, event seat.ChangedEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		logger.FromContext(ctx).Warn("座席変更イベントの送信に失敗", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// buildSeatLockKey はラベル集合からロックキーを生成（ソート済みの集合を前提）
// 各ラベルに長さを前置するため、区切り文字を含むラベルでも別の集合と衝突しない
func buildSeatLockKey(labels []string) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = strconv.Itoa(len(l)) + ":" + l
	}
	return "seats:" + strings.Join(parts, ",")
}

func reservationStatus(err error) string {
	switch {
	case errors.Is(err, seat.ErrInvalidRequest):
		return metrics.StatusInvalid
	case errors.Is(err, seat.ErrSeatNotFound):
		return metrics.StatusNotFound
	case seat.IsConflict(err):
		return metrics.StatusConflict
	default:
		return metrics.StatusError
	}
}
