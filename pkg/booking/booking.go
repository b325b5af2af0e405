// Package booking is the reservation data access layer: a remote HTTP
// reservation service backed by a local mirror that takes over whenever the
// service cannot be reached.
package booking

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

// Seating preferences accepted by the reservation service.
const (
	SeatingIndoor  = "Indoor"
	SeatingOutdoor = "Outdoor"
)

// IDPrefix starts every booking id.
const IDPrefix = "#BK-"

const idLength = 8

var (
	// ErrRemote means the reservation service failed or was unreachable.
	// The tiered store recovers from it via the mirror.
	ErrRemote = errors.New("booking: remote unavailable")

	// ErrNotFound means the booking id does not exist.
	ErrNotFound = errors.New("booking: not found")

	// ErrInvalid marks a booking request with missing or malformed fields.
	ErrInvalid = errors.New("booking: invalid request")
)

// Booking is a table reservation. Field names follow the reservation
// service's JSON format.
type Booking struct {
	BookingID         string    `json:"bookingId"`
	CustomerName      string    `json:"customerName"`
	NumberOfGuests    int       `json:"numberOfGuests"`
	BookingDate       string    `json:"bookingDate"`
	BookingTime       string    `json:"bookingTime"`
	CuisinePreference string    `json:"cuisinePreference"`
	SpecialRequests   string    `json:"specialRequests,omitempty"`
	SeatingPreference string    `json:"seatingPreference,omitempty"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
}

// NewBooking holds the fields a caller supplies to create a booking.
type NewBooking struct {
	CustomerName      string `json:"customerName"`
	NumberOfGuests    int    `json:"numberOfGuests"`
	BookingDate       string `json:"bookingDate"`
	BookingTime       string `json:"bookingTime"`
	CuisinePreference string `json:"cuisinePreference"`
	SpecialRequests   string `json:"specialRequests,omitempty"`
	SeatingPreference string `json:"seatingPreference,omitempty"`
}

// Validate checks required fields and formats.
func (n NewBooking) Validate() error {
	var problems []string
	if strings.TrimSpace(n.CustomerName) == "" {
		problems = append(problems, "customerName is required")
	}
	if n.NumberOfGuests <= 0 {
		problems = append(problems, "numberOfGuests must be positive")
	}
	if _, err := time.Parse("2006-01-02", n.BookingDate); err != nil {
		problems = append(problems, "bookingDate must be YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", n.BookingTime); err != nil {
		problems = append(problems, "bookingTime must be HH:MM")
	}
	if strings.TrimSpace(n.CuisinePreference) == "" {
		problems = append(problems, "cuisinePreference is required")
	}
	switch n.SeatingPreference {
	case "", SeatingIndoor, SeatingOutdoor:
	default:
		problems = append(problems, "seatingPreference must be Indoor or Outdoor")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Confirm turns a request into a confirmed booking with the given id.
func (n NewBooking) Confirm(id string, now time.Time) Booking {
	return Booking{
		BookingID:         id,
		CustomerName:      n.CustomerName,
		NumberOfGuests:    n.NumberOfGuests,
		BookingDate:       n.BookingDate,
		BookingTime:       n.BookingTime,
		CuisinePreference: n.CuisinePreference,
		SpecialRequests:   n.SpecialRequests,
		SeatingPreference: n.SeatingPreference,
		Status:            StatusConfirmed,
		CreatedAt:         now,
	}
}

// NewID returns a fresh booking id: "#BK-" followed by eight uppercase
// base-36 characters drawn from a random uuid.
func NewID() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8]) ^ binary.BigEndian.Uint64(u[8:])

	const space = 36 * 36 * 36 * 36 * 36 * 36 * 36 * 36
	s := strings.ToUpper(strconv.FormatUint(n%space, 36))
	if len(s) < idLength {
		s = strings.Repeat("0", idLength-len(s)) + s
	}
	return IDPrefix + s
}

// Store is the booking data access interface used by the tool dispatcher
// and the UI.
type Store interface {
	// List returns every known booking.
	List(ctx context.Context) ([]Booking, error)

	// Create stores a new confirmed booking and returns it with its id.
	Create(ctx context.Context, req NewBooking) (Booking, error)

	// Cancel marks a booking cancelled. It reports false when the id is
	// unknown. Cancelling a cancelled booking succeeds.
	Cancel(ctx context.Context, id string) (bool, error)
}
