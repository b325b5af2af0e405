package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/teslashibe/go-concierge/internal/httpc"
)

// DefaultAPIURL is the hosted reservation service.
const DefaultAPIURL = "https://voiceai-api.vercel.app/api"

// RemoteError is a failed call to the reservation service.
type RemoteError struct {
	Op         string
	StatusCode int // 0 when the request never got a response
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		if e.Message != "" {
			return fmt.Sprintf("booking: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
		}
		return fmt.Sprintf("booking: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("booking: %s: %v", e.Op, e.Err)
}

// Unwrap returns the transport error, if any.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is matches ErrRemote for every RemoteError and ErrNotFound for 404s.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// RemoteClient talks to the reservation HTTP service.
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// RemoteOption configures a RemoteClient.
type RemoteOption func(*RemoteClient)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteClient) {
		r.httpClient = c
	}
}

// NewRemoteClient creates a client for baseURL (e.g. DefaultAPIURL).
func NewRemoteClient(baseURL string, opts ...RemoteOption) *RemoteClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	r := &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpc.NewStreamingClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List fetches all bookings.
func (r *RemoteClient) List(ctx context.Context) ([]Booking, error) {
	var out []Booking
	if err := r.do(ctx, "list", http.MethodGet, "/bookings", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Booking{}
	}
	return out, nil
}

// Create posts a booking request; the service assigns the id.
func (r *RemoteClient) Create(ctx context.Context, req NewBooking) (Booking, error) {
	var out Booking
	if err := r.do(ctx, "create", http.MethodPost, "/bookings", req, &out); err != nil {
		return Booking{}, err
	}
	if out.BookingID == "" {
		return Booking{}, &RemoteError{Op: "create", Err: fmt.Errorf("response has no bookingId")}
	}
	return out, nil
}

// cancelResponse accepts both `{message, booking}` and a bare booking.
type cancelResponse struct {
	Message string   `json:"message"`
	Booking *Booking `json:"booking"`
}

// Cancel deletes a booking by id. An unknown id yields an error matching
// both ErrRemote and ErrNotFound.
func (r *RemoteClient) Cancel(ctx context.Context, id string) (bool, error) {
	var out cancelResponse
	if err := r.do(ctx, "cancel", http.MethodDelete, "/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RemoteClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("booking: marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
