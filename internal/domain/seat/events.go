package seat

import "time"

// ChangeType は座席状態変更の種類
type ChangeType string

const (
	ChangeReserved  ChangeType = "seats.reserved"
	ChangeCancelled ChangeType = "seat.cancelled"
)

// ChangedEvent は座席の予約状態が変わったときに通知されるイベント
type ChangedEvent struct {
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	Labels     []string   `json:"labels"`
	Reserved   bool       `json:"reserved"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewChangedEvent は変更後の座席からイベントを作成する
func NewChangedEvent(t ChangeType, seats []*Seat) ChangedEvent {
	labels := make([]string, len(seats))
	for i, s := range seats {
		labels[i] = s.Label
	}
	return ChangedEvent{
		Type:       t,
		Labels:     labels,
		Reserved:   t == ChangeReserved,
		OccurredAt: time.Now().UTC(),
	}
}
