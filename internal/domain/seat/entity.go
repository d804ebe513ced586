package seat

import (
	"strings"
	"time"
)

// Seat は座席エンティティを表す
type Seat struct {
	ID        int64
	Label     string // 階・列の座標（例: "2F-A3"）
	Reserved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64 // 楽観的ロック用
}

// NewSeat は新しい座席を作成する（初期状態は空席）
func NewSeat(label string) *Seat {
	now := time.Now()
	return &Seat{
		Label:     strings.TrimSpace(label),
		Reserved:  false,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// IsAvailable は座席が予約可能かを返す
func (s *Seat) IsAvailable() bool {
	return !s.Reserved
}

// Reserve は座席を予約状態にする
func (s *Seat) Reserve() error {
	if s.Reserved {
		return ErrSeatAlreadyReserved
	}
	s.Reserved = true
	s.UpdatedAt = time.Now()
	return nil
}

// Release は座席の予約を取り消す
func (s *Seat) Release() error {
	if !s.Reserved {
		return ErrSeatNotReserved
	}
	s.Reserved = false
	s.UpdatedAt = time.Now()
	return nil
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.Label == "" {
		return ErrLabelRequired
	}
	if len(s.Label) > MaxLabelLength {
		return ErrLabelTooLong
	}
	return nil
}

// MaxLabelLength はラベルの最大長（DBのカラム長と一致させる）
const MaxLabelLength = 64
