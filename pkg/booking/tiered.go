package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-concierge/pkg/metrics"
)

// TieredStore serves bookings from the remote service and falls back to
// the mirror on ErrRemote. The two tiers are never reconciled.
type TieredStore struct {
	remote Store
	mirror Mirror
	logger *slog.Logger

	// mu serializes mirror read-modify-write cycles.
	mu  sync.Mutex
	now func() time.Time
	ids func() string
}

// NewTieredStore composes remote and mirror.
func NewTieredStore(remote Store, mirror Mirror, logger *slog.Logger) *TieredStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TieredStore{
		remote: remote,
		mirror: mirror,
		logger: logger.With("component", "booking"),
		now:    time.Now,
		ids:    NewID,
	}
}

func (s *TieredStore) fallback(op string, err error) {
	metrics.BookingFallbacksTotal.WithLabelValues(op).Inc()
	s.logger.Warn("reservation service unavailable, using local mirror", "op", op, "error", err)
}

// List implements Store.
func (s *TieredStore) List(ctx context.Context) ([]Booking, error) {
	bookings, err := s.remote.List(ctx)
	if err == nil {
		return bookings, nil
	}
	if !errors.Is(err, ErrRemote) {
		return nil, err
	}
	s.fallback("list", err)
	return s.mirror.Load(ctx)
}

// Create implements Store.
func (s *TieredStore) Create(ctx context.Context, req NewBooking) (Booking, error) {
	if err := req.Validate(); err != nil {
		return Booking{}, err
	}

	local := req.Confirm(s.ids(), s.now().UTC())

	b, err := s.remote.Create(ctx, req)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrRemote) {
		return Booking{}, err
	}
	s.fallback("create", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.mirror.Load(ctx)
	if err != nil {
		return Booking{}, err
	}
	bookings = append([]Booking{local}, bookings...)
	if err := s.mirror.Save(ctx, bookings); err != nil {
		return Booking{}, err
	}
	return local, nil
}

// Cancel implements Store. A remote 404 also falls through to the mirror,
// since bookings created while offline only exist there.
func (s *TieredStore) Cancel(ctx context.Context, id string) (bool, error) {
	ok, err := s.remote.Cancel(ctx, id)
	if err == nil {
		return ok, nil
	}
	if !errors.Is(err, ErrRemote) {
		return false, err
	}
	s.fallback("cancel", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	bookings, err := s.mirror.Load(ctx)
	if err != nil {
		return false, err
	}
	for i := range bookings {
		if bookings[i].BookingID != id {
			continue
		}
		if bookings[i].Status == StatusCancelled {
			return true, nil
		}
		bookings[i].Status = StatusCancelled
		if err := s.mirror.Save(ctx, bookings); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

var (
	_ Store = (*TieredStore)(nil)
	_ Store = (*RemoteClient)(nil)
)
