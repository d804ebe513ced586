package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 一括予約の総数（status: success, invalid, not_found, conflict, lock_failed, error）
	ReservationsTotal *prometheus.CounterVec

	// 予約された座席数（成功した一括予約に含まれる座席の累計）
	SeatsReservedTotal prometheus.Counter

	// 予約取消の総数（status: success, noop, not_reserved, conflict, error）
	CancellationsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 座席数（state: reserved, total）
	Seats *prometheus.GaugeVec
}

// Reservation / Cancellation のステータスラベル
const (
	StatusSuccess     = "success"
	StatusInvalid     = "invalid"
	StatusNotFound    = "not_found"
	StatusConflict    = "conflict"
	StatusLockFailed  = "lock_failed"
	StatusNoop        = "noop"
	StatusNotReserved = "not_reserved"
	StatusError       = "error"
)

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_reservations_total",
				Help: "Total number of batch seat reservation attempts",
			},
			[]string{"status"},
		),
		SeatsReservedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seats_reserved_total",
				Help: "Total number of seats reserved by successful batches",
			},
		),
		CancellationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_cancellations_total",
				Help: "Total number of seat cancellation attempts",
			},
			[]string{"status"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		Seats: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seats",
				Help: "Current number of seats by state",
			},
			[]string{"state"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.SeatsReservedTotal,
		m.CancellationsTotal,
		m.DistributedLockDuration,
		m.Seats,
	)

	return m
}

// NewNop はどこにも登録しないメトリクスを返す（テスト・メトリクス無効時用）
func NewNop() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// SetSeatCounts は座席数ゲージを更新する
func (m *Metrics) SetSeatCounts(reserved, total int) {
	m.Seats.WithLabelValues("reserved").Set(float64(reserved))
	m.Seats.WithLabelValues("total").Set(float64(total))
}
