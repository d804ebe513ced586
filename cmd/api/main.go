package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/place-seat-reservation/internal/api"
	"github.com/sanosuguru/place-seat-reservation/internal/api/handler"
	apimw "github.com/sanosuguru/place-seat-reservation/internal/api/middleware"
	"github.com/sanosuguru/place-seat-reservation/internal/application"
	"github.com/sanosuguru/place-seat-reservation/internal/config"
	"github.com/sanosuguru/place-seat-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/place-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/place-seat-reservation/internal/infrastructure/store"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/place-seat-reservation/internal/worker"
)

func main() {
	// .env があれば読み込む（本番では環境変数を直接設定する）
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.Env)
	defer logger.Sync()

	// データベース
	st, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatal("データベース初期化エラー", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer st.Close()
	log.Info("データベースに接続しました", zap.String("driver", cfg.Database.Driver))

	healthChecks := []handler.HealthCheck{
		{Name: "database", Check: st.DB.PingContext},
	}

	// 分散ロック（任意）
	var lockManager redisinfra.LockManagerInterface
	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn("Redisに接続できないため分散ロックを無効化します", zap.Error(err))
		} else {
			defer redisClient.Close()
			lockManager = redisinfra.NewLockManager(redisClient)
			healthChecks = append(healthChecks, handler.HealthCheck{
				Name:  "redis",
				Check: func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) },
			})
			log.Info("分散ロックを有効化しました", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	// 座席変更イベント通知（任意）
	var publisher application.EventPublisher
	if cfg.AMQP.URL != "" {
		p, err := rabbitmq.NewPublisher(&cfg.AMQP)
		if err != nil {
			log.Warn("RabbitMQに接続できないためイベント通知を無効化します", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
			log.Info("イベント通知を有効化しました", zap.String("queue", cfg.AMQP.Queue))
		}
	}

	m := metrics.New()
	seatService := application.NewSeatService(st.Seats, lockManager, publisher, m, cfg.Lock)

	// Echo インスタンス作成
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Validator = api.NewValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// ミドルウェア設定
	apimw.SetupMiddleware(e, m)

	// ルーティング
	e.GET("/health", handler.NewHealthHandler(healthChecks...).Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimw.MetricsBasicAuth(cfg.Metrics))
	handler.RegisterSeatRoutes(e, handler.NewSeatHandler(seatService))

	// バックグラウンドワーカー
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gaugeUpdater := worker.NewInventoryGaugeUpdater(seatService, m, cfg.Inventory.Interval)
	go gaugeUpdater.Start(ctx)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info("サーバーを起動します", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("サーバーをシャットダウンしています...")
	gaugeUpdater.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
		return
	}

	log.Info("サーバーが正常にシャットダウンしました")
}
