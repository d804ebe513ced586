package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
)

const seatColumns = `id, label, reserved, created_at, updated_at, version`

type seatRow struct {
	ID        int64     `db:"id"`
	Label     string    `db:"label"`
	Reserved  bool      `db:"reserved"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Version   int64     `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, Label: r.Label, Reserved: r.Reserved,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

func storageError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", seat.ErrStorageUnavailable, msg, err)
}

func rowsAffected(result sql.Result, msg string) (int64, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storageError(msg, err)
	}
	return rows, nil
}

// SeatRepository は座席リポジトリのMySQL実装
type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

func (r *SeatRepository) selectSeats(ctx context.Context, query string, args ...interface{}) ([]*seat.Seat, error) {
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storageError("座席取得に失敗", err)
	}
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats, nil
}

func (r *SeatRepository) FindByLabels(ctx context.Context, labels []string) ([]*seat.Seat, error) {
	if len(labels) == 0 {
		return []*seat.Seat{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+seatColumns+` FROM seats WHERE label IN (?) ORDER BY label`, seat.UniqueLabels(labels))
	if err != nil {
		return nil, fmt.Errorf("クエリ構築に失敗: %w", err)
	}
	return r.selectSeats(ctx, r.db.Rebind(query), args...)
}

func (r *SeatRepository) FindByID(ctx context.Context, id int64) (*seat.Seat, error) {
	var row seatRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+seatColumns+` FROM seats WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, seat.ErrSeatNotFound
		}
		return nil, storageError("座席取得に失敗", err)
	}
	return row.toEntity(), nil
}

func (r *SeatRepository) FindAll(ctx context.Context) ([]*seat.Seat, error) {
	return r.selectSeats(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY label`)
}

// SaveAll は座席を1トランザクションで更新する（バージョン不一致があれば全体をロールバック）
func (r *SeatRepository) SaveAll(ctx context.Context, seats []*seat.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	ordered := make([]*seat.Seat, len(seats))
	copy(ordered, seats)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageError("トランザクション開始に失敗", err)
	}
	defer tx.Rollback()

	var conflicted []string
	for _, s := range ordered {
		result, err := tx.ExecContext(ctx,
			`UPDATE seats SET reserved = ?, updated_at = ?, version = version + 1 WHERE id = ? AND version = ?`,
			s.Reserved, s.UpdatedAt, s.ID, s.Version)
		if err != nil {
			return storageError("座席更新に失敗", err)
		}
		rows, err := rowsAffected(result, "更新結果の確認に失敗")
		if err != nil {
			return err
		}
		if rows != 1 {
			conflicted = append(conflicted, s.Label)
		}
	}
	if len(conflicted) > 0 {
		sort.Strings(conflicted)
		return &seat.SeatsError{Err: seat.ErrOptimisticLockConflict, Labels: conflicted}
	}

	if err := tx.Commit(); err != nil {
		return storageError("コミットに失敗", err)
	}
	for _, s := range ordered {
		s.Version++
	}
	return nil
}

func (r *SeatRepository) Save(ctx context.Context, s *seat.Seat) error {
	return r.SaveAll(ctx, []*seat.Seat{s})
}

func (r *SeatRepository) CreateBulk(ctx context.Context, seats []*seat.Seat) (int, error) {
	const batchSize = 1000
	var created int
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		batch := seats[i:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*5)
		for j, s := range batch {
			placeholders[j] = "(?, ?, ?, ?, ?)"
			args = append(args, s.Label, s.Reserved, s.CreatedAt, s.UpdatedAt, s.Version)
		}
		query := `INSERT IGNORE INTO seats (label, reserved, created_at, updated_at, version) VALUES ` +
			strings.Join(placeholders, ", ")
		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return created, storageError("座席一括作成に失敗", err)
		}
		n, err := rowsAffected(result, "作成結果の確認に失敗")
		if err != nil {
			return created, err
		}
		created += int(n)
	}
	return created, nil
}

func (r *SeatRepository) CountReserved(ctx context.Context) (int, int, error) {
	var counts struct {
		Reserved sql.NullInt64 `db:"reserved"`
		Total    int           `db:"total"`
	}
	query := `SELECT SUM(reserved) AS reserved, COUNT(*) AS total FROM seats`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return 0, 0, storageError("座席数取得に失敗", err)
	}
	return int(counts.Reserved.Int64), counts.Total, nil
}

var _ seat.Repository = (*SeatRepository)(nil)
