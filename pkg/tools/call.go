// Package tools parses and executes the functions the assistant may call
// mid-conversation: createBooking, checkWeather and cancelBooking.
package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/teslashibe/go-concierge/pkg/booking"
)

// Function names understood by the dispatcher.
const (
	NameCreateBooking = "createBooking"
	NameCheckWeather  = "checkWeather"
	NameCancelBooking = "cancelBooking"
)

var (
	// ErrValidation marks a call whose arguments are missing or malformed.
	ErrValidation = errors.New("tools: invalid arguments")

	// ErrUnknownTool marks a call to a function that is not declared.
	ErrUnknownTool = errors.New("tools: unknown function")
)

// ValidationError describes rejected call arguments.
type ValidationError struct {
	Tool   string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tools: %s: %s", e.Tool, e.Reason)
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsValidation returns true if err is an argument validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Request is a function call as received from the live stream.
type Request struct {
	ID   string
	Name string
	Args map[string]any
}

// Call is a parsed request. Exactly one of the concrete types below.
type Call interface {
	CallID() string
	Name() string
}

// CreateBookingCall asks for a new reservation.
type CreateBookingCall struct {
	ID      string
	Booking booking.NewBooking
}

// CheckWeatherCall asks for the forecast on a date.
type CheckWeatherCall struct {
	ID   string
	Date string
}

// CancelBookingCall asks to cancel a reservation.
type CancelBookingCall struct {
	ID        string
	BookingID string
}

// UnknownCall is any function name the dispatcher does not know.
type UnknownCall struct {
	ID       string
	Function string
}

func (c CreateBookingCall) CallID() string { return c.ID }
func (c CreateBookingCall) Name() string   { return NameCreateBooking }
func (c CheckWeatherCall) CallID() string  { return c.ID }
func (c CheckWeatherCall) Name() string    { return NameCheckWeather }
func (c CancelBookingCall) CallID() string { return c.ID }
func (c CancelBookingCall) Name() string   { return NameCancelBooking }
func (c UnknownCall) CallID() string       { return c.ID }
func (c UnknownCall) Name() string         { return c.Function }

// Parse converts a request into a typed call. Unknown names yield an
// UnknownCall and no error; bad arguments yield a *ValidationError.
func Parse(req Request) (Call, error) {
	switch req.Name {
	case NameCreateBooking:
		return parseCreateBooking(req)
	case NameCheckWeather:
		date := stringArg(req.Args, "date")
		if date == "" {
			return nil, &ValidationError{Tool: req.Name, Reason: "date is required"}
		}
		return CheckWeatherCall{ID: req.ID, Date: date}, nil
	case NameCancelBooking:
		id := stringArg(req.Args, "bookingId")
		if id == "" {
			return nil, &ValidationError{Tool: req.Name, Reason: "bookingId is required"}
		}
		return CancelBookingCall{ID: req.ID, BookingID: id}, nil
	default:
		return UnknownCall{ID: req.ID, Function: req.Name}, nil
	}
}

func parseCreateBooking(req Request) (Call, error) {
	guests, err := intArg(req.Args, "numberOfGuests")
	if err != nil {
		return nil, &ValidationError{Tool: req.Name, Reason: err.Error()}
	}

	seating, err := normalizeSeating(stringArg(req.Args, "seatingPreference"))
	if err != nil {
		return nil, &ValidationError{Tool: req.Name, Reason: err.Error()}
	}

	nb := booking.NewBooking{
		CustomerName:      stringArg(req.Args, "customerName"),
		NumberOfGuests:    guests,
		BookingDate:       stringArg(req.Args, "bookingDate"),
		BookingTime:       stringArg(req.Args, "bookingTime"),
		CuisinePreference: stringArg(req.Args, "cuisinePreference"),
		SpecialRequests:   stringArg(req.Args, "specialRequests"),
		SeatingPreference: seating,
	}
	if err := nb.Validate(); err != nil {
		reason := strings.TrimPrefix(err.Error(), booking.ErrInvalid.Error()+": ")
		return nil, &ValidationError{Tool: req.Name, Reason: reason}
	}
	return CreateBookingCall{ID: req.ID, Booking: nb}, nil
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// intArg accepts JSON numbers and numeric strings holding a whole number.
func intArg(args map[string]any, key string) (int, error) {
	var f float64
	switch v := args[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", key)
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be a positive whole number", key)
	}
	return int(f), nil
}

func normalizeSeating(s string) (string, error) {
	l := strings.ToLower(s)
	switch {
	case l == "":
		return "", nil
	case strings.HasPrefix(l, "out"):
		return booking.SeatingOutdoor, nil
	case strings.HasPrefix(l, "in"):
		return booking.SeatingIndoor, nil
	default:
		return "", fmt.Errorf("seatingPreference must be Indoor or Outdoor")
	}
}
