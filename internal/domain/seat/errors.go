package seat

import (
	"errors"
	"strings"
)

// Seat ドメインのエラー定義
var (
	ErrInvalidRequest         = errors.New("座席IDが指定されていません")
	ErrSeatNotFound           = errors.New("座席が見つかりません")
	ErrSeatAlreadyReserved    = errors.New("座席は既に予約されています")
	ErrSeatNotReserved        = errors.New("座席は予約されていません")
	ErrLabelRequired          = errors.New("座席ラベルは必須です")
	ErrLabelTooLong           = errors.New("座席ラベルが長すぎます")
	ErrOptimisticLockConflict = errors.New("楽観的ロックの競合が発生しました")
	ErrSeatBusy               = errors.New("座席が他のユーザーによって処理中です")
	ErrStorageUnavailable     = errors.New("ストレージを利用できません")
)

// SeatsError は対象の座席ラベルを伴うエラー
// errors.Is で元のセンチネルエラーと比較できる
type SeatsError struct {
	Err    error
	Labels []string
}

func (e *SeatsError) Error() string {
	if len(e.Labels) == 0 {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + strings.Join(e.Labels, ", ")
}

func (e *SeatsError) Unwrap() error {
	return e.Err
}

// LabelsOf はエラーに含まれる座席ラベルを返す
func LabelsOf(err error) []string {
	var se *SeatsError
	if errors.As(err, &se) {
		return se.Labels
	}
	return nil
}

// IsConflict は競合系のエラー（再取得して再送すべきもの）かを返す
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeatAlreadyReserved) ||
		errors.Is(err, ErrOptimisticLockConflict) ||
		errors.Is(err, ErrSeatBusy)
}
