package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/place-seat-reservation/internal/config"
	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
	redisinfra "github.com/sanosuguru/place-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/metrics"
)

var testLockCfg = config.LockConfig{
	TTL:           10 * time.Second,
	MaxRetries:    3,
	RetryInterval: 100 * time.Millisecond,
}

// === Test helper ===
type testDeps struct {
	seatRepo    *MockSeatRepository
	lockManager *MockLockManager
	lock        *MockLock
	publisher   *MockPublisher
	metrics     *metrics.Metrics
	service     *SeatService
}

func newTestDeps() *testDeps {
	seatRepo := new(MockSeatRepository)
	lockManager := new(MockLockManager)
	lock := new(MockLock)
	publisher := new(MockPublisher)
	m := metrics.NewNop()

	return &testDeps{
		seatRepo:    seatRepo,
		lockManager: lockManager,
		lock:        lock,
		publisher:   publisher,
		metrics:     m,
		service:     NewSeatService(seatRepo, lockManager, publisher, m, testLockCfg),
	}
}

// ロック・通知なしのサービス
func newPlainDeps() *testDeps {
	seatRepo := new(MockSeatRepository)
	m := metrics.NewNop()
	return &testDeps{
		seatRepo: seatRepo,
		metrics:  m,
		service:  NewSeatService(seatRepo, nil, nil, m, testLockCfg),
	}
}

func (d *testDeps) expectLock(key string) {
	d.lockManager.On("AcquireLockWithRetry", mock.Anything, key, 10*time.Second, 3, 100*time.Millisecond).
		Return(d.lock, nil)
	d.lock.On("Release", mock.Anything).Return(nil)
}

func seatsOf(labels ...string) []*seat.Seat {
	seats := make([]*seat.Seat, len(labels))
	for i, l := range labels {
		seats[i] = &seat.Seat{ID: int64(i + 1), Label: l}
	}
	return seats
}

// === ReserveSeats ===

func TestSeatService_ReserveSeats_Success(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.expectLock("seats:2:A1,2:A2")
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1", "A2"}).Return(seatsOf("A1", "A2"), nil)
	deps.seatRepo.On("SaveAll", ctx, mock.MatchedBy(func(seats []*seat.Seat) bool {
		return len(seats) == 2 && seats[0].Reserved && seats[1].Reserved
	})).Return(nil)
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e seat.ChangedEvent) bool {
		return e.Type == seat.ChangeReserved && e.Reserved && assert.ObjectsAreEqual([]string{"A1", "A2"}, e.Labels)
	})).Return(nil)

	result, err := deps.service.ReserveSeats(ctx, []string{"A2", "A1"})

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "A1", result[0].Label)
	assert.Equal(t, "A2", result[1].Label)
	assert.True(t, result[0].Reserved)
	assert.True(t, result[1].Reserved)

	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ReservationsTotal.WithLabelValues(metrics.StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(deps.metrics.SeatsReservedTotal))

	deps.seatRepo.AssertExpectations(t)
	deps.lockManager.AssertExpectations(t)
	deps.lock.AssertExpectations(t)
	deps.publisher.AssertExpectations(t)
}

func TestSeatService_ReserveSeats_EmptyRequest(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	for _, labels := range [][]string{nil, {}} {
		result, err := deps.service.ReserveSeats(ctx, labels)
		assert.ErrorIs(t, err, seat.ErrInvalidRequest)
		assert.Nil(t, result)
	}

	// ストアもロックも触らない
	deps.seatRepo.AssertNotCalled(t, "FindByLabels", mock.Anything, mock.Anything)
	deps.seatRepo.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
	deps.lockManager.AssertNotCalled(t, "AcquireLockWithRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 2.0, testutil.ToFloat64(deps.metrics.ReservationsTotal.WithLabelValues(metrics.StatusInvalid)))
}

func TestSeatService_ReserveSeats_DuplicateLabels(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	deps.seatRepo.On("FindByLabels", ctx, []string{"A1"}).Return(seatsOf("A1"), nil)
	deps.seatRepo.On("SaveAll", ctx, mock.MatchedBy(func(seats []*seat.Seat) bool {
		return len(seats) == 1 && seats[0].Label == "A1"
	})).Return(nil)

	result, err := deps.service.ReserveSeats(ctx, []string{"A1", "A1"})

	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].Reserved)
	deps.seatRepo.AssertExpectations(t)
}

func TestSeatService_ReserveSeats_MissingSeat(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	// A1 は予約済みだが、存在しない Z9 の検出が優先される
	found := seatsOf("A1")
	found[0].Reserved = true
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1", "Z9"}).Return(found, nil)

	result, err := deps.service.ReserveSeats(ctx, []string{"Z9", "A1"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrSeatNotFound)
	assert.Equal(t, []string{"Z9"}, seat.LabelsOf(err))
	deps.seatRepo.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ReservationsTotal.WithLabelValues(metrics.StatusNotFound)))
}

func TestSeatService_ReserveSeats_AlreadyReserved(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	found := seatsOf("A1", "A2", "A3")
	found[1].Reserved = true
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1", "A2", "A3"}).Return(found, nil)

	result, err := deps.service.ReserveSeats(ctx, []string{"A1", "A2", "A3"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrSeatAlreadyReserved)
	assert.True(t, seat.IsConflict(err))
	assert.Equal(t, []string{"A2"}, seat.LabelsOf(err))
	deps.seatRepo.AssertNotCalled(t, "SaveAll", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ReservationsTotal.WithLabelValues(metrics.StatusConflict)))
}

func TestSeatService_ReserveSeats_OptimisticLockConflict(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.expectLock("seats:2:A1")
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1"}).Return(seatsOf("A1"), nil)
	conflict := &seat.SeatsError{Err: seat.ErrOptimisticLockConflict, Labels: []string{"A1"}}
	deps.seatRepo.On("SaveAll", ctx, mock.Anything).Return(conflict)

	result, err := deps.service.ReserveSeats(ctx, []string{"A1"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrOptimisticLockConflict)
	assert.True(t, seat.IsConflict(err))
	deps.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	deps.lock.AssertExpectations(t)
}

func TestSeatService_ReserveSeats_StoreError(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	storeErr := fmt.Errorf("%w: connection refused", seat.ErrStorageUnavailable)
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1"}).Return(nil, storeErr)

	_, err := deps.service.ReserveSeats(ctx, []string{"A1"})

	assert.ErrorIs(t, err, seat.ErrStorageUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ReservationsTotal.WithLabelValues(metrics.StatusError)))
}

func TestSeatService_ReserveSeats_LockNotAcquired(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.lockManager.On("AcquireLockWithRetry", mock.Anything, "seats:2:A1,2:B2", 10*time.Second, 3, 100*time.Millisecond).
		Return(nil, redisinfra.ErrLockNotAcquired)

	result, err := deps.service.ReserveSeats(ctx, []string{"B2", "A1"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrSeatBusy)
	assert.True(t, seat.IsConflict(err))
	assert.Equal(t, []string{"A1", "B2"}, seat.LabelsOf(err))
	deps.seatRepo.AssertNotCalled(t, "FindByLabels", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.ReservationsTotal.WithLabelValues(metrics.StatusLockFailed)))
}

func TestSeatService_ReserveSeats_LockBackendDown(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	// Redis 障害時はロックなしで続行する
	deps.lockManager.On("AcquireLockWithRetry", mock.Anything, "seats:2:A1", 10*time.Second, 3, 100*time.Millisecond).
		Return(nil, errors.New("dial tcp: connection refused"))
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1"}).Return(seatsOf("A1"), nil)
	deps.seatRepo.On("SaveAll", ctx, mock.Anything).Return(nil)
	deps.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result, err := deps.service.ReserveSeats(ctx, []string{"A1"})

	require.NoError(t, err)
	require.Len(t, result, 1)
	deps.lock.AssertNotCalled(t, "Release", mock.Anything)
}

func TestSeatService_ReserveSeats_PublishFailureIgnored(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.expectLock("seats:2:A1")
	deps.seatRepo.On("FindByLabels", ctx, []string{"A1"}).Return(seatsOf("A1"), nil)
	deps.seatRepo.On("SaveAll", ctx, mock.Anything).Return(nil)
	deps.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	result, err := deps.service.ReserveSeats(ctx, []string{"A1"})

	require.NoError(t, err)
	require.Len(t, result, 1)
	deps.publisher.AssertExpectations(t)
}

// === CancelReservation ===

func TestSeatService_CancelReservation_Success(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	reserved := &seat.Seat{ID: 7, Label: "B3", Reserved: true, Version: 2}
	deps.seatRepo.On("FindByID", ctx, int64(7)).Return(reserved, nil)
	deps.seatRepo.On("Save", ctx, reserved).Return(nil)
	deps.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e seat.ChangedEvent) bool {
		return e.Type == seat.ChangeCancelled && !e.Reserved && assert.ObjectsAreEqual([]string{"B3"}, e.Labels)
	})).Return(nil)

	result, err := deps.service.CancelReservation(ctx, 7)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Reserved)
	assert.Equal(t, "B3", result.Label)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.CancellationsTotal.WithLabelValues(metrics.StatusSuccess)))
	deps.seatRepo.AssertExpectations(t)
	deps.publisher.AssertExpectations(t)
}

func TestSeatService_CancelReservation_UnknownID(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.seatRepo.On("FindByID", ctx, int64(999)).Return(nil, seat.ErrSeatNotFound)

	result, err := deps.service.CancelReservation(ctx, 999)

	assert.NoError(t, err)
	assert.Nil(t, result)
	deps.seatRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	deps.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.CancellationsTotal.WithLabelValues(metrics.StatusNoop)))
}

func TestSeatService_CancelReservation_NotReserved(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.seatRepo.On("FindByID", ctx, int64(3)).Return(&seat.Seat{ID: 3, Label: "A3"}, nil)

	result, err := deps.service.CancelReservation(ctx, 3)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrSeatNotReserved)
	assert.Equal(t, []string{"A3"}, seat.LabelsOf(err))
	deps.seatRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSeatService_CancelReservation_Conflict(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	reserved := &seat.Seat{ID: 4, Label: "A4", Reserved: true}
	deps.seatRepo.On("FindByID", ctx, int64(4)).Return(reserved, nil)
	deps.seatRepo.On("Save", ctx, reserved).
		Return(&seat.SeatsError{Err: seat.ErrOptimisticLockConflict, Labels: []string{"A4"}})

	result, err := deps.service.CancelReservation(ctx, 4)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrOptimisticLockConflict)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.CancellationsTotal.WithLabelValues(metrics.StatusConflict)))
}

func TestSeatService_CancelReservation_StoreError(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	deps.seatRepo.On("FindByID", ctx, int64(1)).Return(nil, seat.ErrStorageUnavailable)

	result, err := deps.service.CancelReservation(ctx, 1)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, seat.ErrStorageUnavailable)
}

// === Reads ===

func TestSeatService_GetSeat(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	deps.seatRepo.On("FindByID", ctx, int64(1)).Return(&seat.Seat{ID: 1, Label: "A1"}, nil)
	deps.seatRepo.On("FindByID", ctx, int64(2)).Return(nil, seat.ErrSeatNotFound)

	se, err := deps.service.GetSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A1", se.Label)

	_, err = deps.service.GetSeat(ctx, 2)
	assert.ErrorIs(t, err, seat.ErrSeatNotFound)
}

func TestSeatService_GetAllSeats(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	deps.seatRepo.On("FindAll", ctx).Return(seatsOf("A1", "A2"), nil)

	seats, err := deps.service.GetAllSeats(ctx)
	require.NoError(t, err)
	assert.Len(t, seats, 2)
}

func TestSeatService_GetReservedLabels(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	all := seatsOf("A1", "A2", "B1")
	all[0].Reserved = true
	all[2].Reserved = true
	deps.seatRepo.On("FindAll", ctx).Return(all, nil)

	labels, err := deps.service.GetReservedLabels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B1"}, labels)
}

func TestSeatService_CountSeats(t *testing.T) {
	deps := newPlainDeps()
	ctx := context.Background()

	deps.seatRepo.On("CountReserved", ctx).Return(3, 10, nil)

	reserved, total, err := deps.service.CountSeats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, reserved)
	assert.Equal(t, 10, total)
}

// === ProvisionSeats ===

func TestSeatService_ProvisionSeats(t *testing.T) {
	t.Run("重複を除いて一括作成する", func(t *testing.T) {
		deps := newPlainDeps()
		ctx := context.Background()

		deps.seatRepo.On("CreateBulk", ctx, mock.MatchedBy(func(seats []*seat.Seat) bool {
			return len(seats) == 2 && seats[0].Label == "A1" && seats[1].Label == "A2" && !seats[0].Reserved
		})).Return(2, nil)

		created, err := deps.service.ProvisionSeats(ctx, []string{"A2", "A1", "A2"})
		require.NoError(t, err)
		assert.Equal(t, 2, created)
	})

	t.Run("不正なラベルは作成しない", func(t *testing.T) {
		deps := newPlainDeps()

		_, err := deps.service.ProvisionSeats(context.Background(), []string{"A1", "   "})
		assert.ErrorIs(t, err, seat.ErrLabelRequired)
		deps.seatRepo.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything)
	})

	t.Run("空の指定はエラー", func(t *testing.T) {
		deps := newPlainDeps()

		_, err := deps.service.ProvisionSeats(context.Background(), nil)
		assert.ErrorIs(t, err, seat.ErrInvalidRequest)
	})
}

func TestBuildSeatLockKey(t *testing.T) {
	t.Run("ラベル集合からキーを生成する", func(t *testing.T) {
		assert.Equal(t, "seats:2:A1,3:B10", buildSeatLockKey([]string{"A1", "B10"}))
	})

	t.Run("区切り文字を含むラベルは別の集合と衝突しない", func(t *testing.T) {
		assert.NotEqual(t, buildSeatLockKey([]string{"A,B"}), buildSeatLockKey([]string{"A", "B"}))
		assert.NotEqual(t, buildSeatLockKey([]string{"A,1:B"}), buildSeatLockKey([]string{"A", "B"}))
	})
}
