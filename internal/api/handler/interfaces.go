package handler

import (
	"context"

	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
)

// SeatServiceInterface は座席サービスのインターフェース
type SeatServiceInterface interface {
	ReserveSeats(ctx context.Context, labels []string) ([]*seat.Seat, error)
	CancelReservation(ctx context.Context, id int64) (*seat.Seat, error)
	GetAllSeats(ctx context.Context) ([]*seat.Seat, error)
	GetSeat(ctx context.Context, id int64) (*seat.Seat, error)
	GetReservedLabels(ctx context.Context) ([]string, error)
}
