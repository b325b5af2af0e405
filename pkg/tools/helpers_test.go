package tools

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-concierge/pkg/booking"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// offline is a reservation service that cannot be reached.
type offline struct{}

func (offline) List(context.Context) ([]booking.Booking, error) {
	return nil, &booking.RemoteError{Op: "list", Err: errors.New("unreachable")}
}

func (offline) Create(context.Context, booking.NewBooking) (booking.Booking, error) {
	return booking.Booking{}, &booking.RemoteError{Op: "create", Err: errors.New("unreachable")}
}

func (offline) Cancel(context.Context, string) (bool, error) {
	return false, &booking.RemoteError{Op: "cancel", Err: errors.New("unreachable")}
}
