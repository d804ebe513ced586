package store

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/place-seat-reservation/internal/config"
	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/place-seat-reservation/internal/infrastructure/mysql"
	"github.com/sanosuguru/place-seat-reservation/internal/infrastructure/postgres"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var ErrUnsupportedDriver = errors.New("未対応のデータベースドライバーです")

// Store は接続と座席リポジトリの組
type Store struct {
	DB    *sqlx.DB
	Seats seat.Repository
}

// Open は設定のドライバーに応じて接続し、マイグレーションを適用する
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		db, err := postgres.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{DB: db, Seats: postgres.NewSeatRepository(db)}, nil
	case DriverMySQL:
		db, err := mysql.NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		if err := mysql.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{DB: db, Seats: mysql.NewSeatRepository(db)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// Close は接続を閉じる
func (s *Store) Close() error {
	return s.DB.Close()
}
