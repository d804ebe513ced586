package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

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

func toEntities(rows []seatRow) []*seat.Seat {
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats
}

// storageError はドライバーのエラーを ErrStorageUnavailable として包む
func storageError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", seat.ErrStorageUnavailable, msg, err)
}

type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

func (r *SeatRepository) FindByLabels(ctx context.Context, labels []string) ([]*seat.Seat, error) {
	if len(labels) == 0 {
		return []*seat.Seat{}, nil
	}
	query := `SELECT ` + seatColumns + ` FROM seats WHERE label = ANY($1) ORDER BY label`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(seat.UniqueLabels(labels))); err != nil {
		return nil, storageError("座席取得に失敗", err)
	}
	return toEntities(rows), nil
}

func (r *SeatRepository) FindByID(ctx context.Context, id int64) (*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1`
	var row seatRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, seat.ErrSeatNotFound
		}
		return nil, storageError("座席取得に失敗", err)
	}
	return row.toEntity(), nil
}

func (r *SeatRepository) FindAll(ctx context.Context) ([]*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats ORDER BY label`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, storageError("座席一覧取得に失敗", err)
	}
	return toEntities(rows), nil
}

// SaveAll は座席を1トランザクションで更新する
// 読み取り時のバージョンと一致しない行が1つでもあれば全体をロールバックする
func (r *SeatRepository) SaveAll(ctx context.Context, seats []*seat.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	// ID順に更新して行ロックの取得順を揃える（デッドロック防止）
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
		ok, err := r.update(ctx, tx, s)
		if err != nil {
			return err
		}
		if !ok {
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

func (r *SeatRepository) update(ctx context.Context, tx *sqlx.Tx, s *seat.Seat) (bool, error) {
	query := `UPDATE seats SET reserved = $1, updated_at = $2, version = version + 1 WHERE id = $3 AND version = $4`
	result, err := tx.ExecContext(ctx, query, s.Reserved, s.UpdatedAt, s.ID, s.Version)
	if err != nil {
		return false, storageError("座席更新に失敗", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, storageError("更新結果の確認に失敗", err)
	}
	return rows == 1, nil
}

func (r *SeatRepository) CreateBulk(ctx context.Context, seats []*seat.Seat) (int, error) {
	if len(seats) == 0 {
		return 0, nil
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 1000
	var created int
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		n, err := r.createBulkBatch(ctx, seats[i:end])
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}

// createBulkBatch はバッチ単位でマルチバリューINSERTを実行（既存ラベルはスキップ）
func (r *SeatRepository) createBulkBatch(ctx context.Context, seats []*seat.Seat) (int, error) {
	query := `INSERT INTO seats (label, reserved, created_at, updated_at, version) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	placeholders := make([]string, 0, len(seats))

	for i, s := range seats {
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, s.Label, s.Reserved, s.CreatedAt, s.UpdatedAt, s.Version)
	}

	query += strings.Join(placeholders, ", ") + ` ON CONFLICT (label) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageError("座席一括作成に失敗", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("作成結果の確認に失敗", err)
	}
	return int(rows), nil
}

func (r *SeatRepository) CountReserved(ctx context.Context) (int, int, error) {
	var counts struct {
		Reserved int `db:"reserved"`
		Total    int `db:"total"`
	}
	query := `SELECT COUNT(*) FILTER (WHERE reserved) AS reserved, COUNT(*) AS total FROM seats`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return 0, 0, storageError("座席数取得に失敗", err)
	}
	return counts.Reserved, counts.Total, nil
}

var _ seat.Repository = (*SeatRepository)(nil)
