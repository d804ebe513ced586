package seat

import "context"

// Repository は座席リポジトリのインターフェース
type Repository interface {
	// FindByLabels はラベル集合に一致する座席をラベル順で取得する（存在しないラベルは無視、重複なし）
	FindByLabels(ctx context.Context, labels []string) ([]*Seat, error)

	// FindByID はIDから座席を取得する
	FindByID(ctx context.Context, id int64) (*Seat, error)

	// FindAll は全座席をラベル順で取得する
	FindAll(ctx context.Context) ([]*Seat, error)

	// SaveAll は複数の座席を1トランザクションで保存する（楽観的ロック）
	SaveAll(ctx context.Context, seats []*Seat) error

	// Save は座席を保存する（楽観的ロック）
	Save(ctx context.Context, seat *Seat) error

	// CreateBulk は複数の座席を一括作成する（既存ラベルはスキップ）
	CreateBulk(ctx context.Context, seats []*Seat) (int, error)

	// CountReserved は予約済み座席数と総座席数を取得する
	CountReserved(ctx context.Context) (reserved int, total int, err error)
}
