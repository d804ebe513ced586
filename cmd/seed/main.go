package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sanosuguru/place-seat-reservation/internal/application"
	"github.com/sanosuguru/place-seat-reservation/internal/config"
	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/place-seat-reservation/internal/infrastructure/store"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/place-seat-reservation/internal/pkg/metrics"
)

// 座席を一括登録する
//
//	seed -labels A1,A2,B1
//	seed -floors 2 -rows A-C -cols 10   # 1F-A1 ... 2F-C10
func main() {
	labelsFlag := flag.String("labels", "", "カンマ区切りの座席ラベル")
	floors := flag.Int("floors", 0, "階数")
	rows := flag.String("rows", "A", "列の範囲（例: A-C）")
	cols := flag.Int("cols", 0, "1列あたりの座席数")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.Env)
	defer logger.Sync()

	labels, err := buildLabels(*labelsFlag, *floors, *rows, *cols)
	if err != nil {
		log.Fatal("座席ラベルの指定が不正です", zap.Error(err))
	}

	st, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatal("データベース初期化エラー", zap.Error(err))
	}
	defer st.Close()

	svc := application.NewSeatService(st.Seats, nil, nil, metrics.NewNop(), cfg.Lock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	created, err := svc.ProvisionSeats(ctx, labels)
	if err != nil {
		log.Fatal("座席の登録に失敗しました", zap.Error(err))
	}

	log.Info("座席を登録しました",
		zap.Int("requested", len(labels)),
		zap.Int("created", created),
		zap.Int("skipped", len(labels)-created),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// buildLabels はラベル指定またはグリッド指定から座席ラベルを作る
func buildLabels(labelsFlag string, floors int, rows string, cols int) ([]string, error) {
	if labelsFlag != "" {
		var labels []string
		for _, l := range strings.Split(labelsFlag, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		if len(labels) == 0 {
			return nil, seat.ErrInvalidRequest
		}
		return labels, nil
	}
	return seat.GridLabels(floors, rows, cols)
}
