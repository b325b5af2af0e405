package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultMirrorKey names the mirrored collection.
const DefaultMirrorKey = "golden_table_bookings"

// Mirror is a local copy of the booking collection, read and written
// wholesale.
type Mirror interface {
	// Load returns the stored collection, empty if nothing was saved yet.
	Load(ctx context.Context) ([]Booking, error)

	// Save replaces the stored collection.
	Save(ctx context.Context, bookings []Booking) error
}

// MemoryMirror keeps the collection in memory.
type MemoryMirror struct {
	mu       sync.Mutex
	bookings []Booking
}

// NewMemoryMirror creates a mirror seeded with bookings.
func NewMemoryMirror(bookings ...Booking) *MemoryMirror {
	return &MemoryMirror{bookings: append([]Booking(nil), bookings...)}
}

// Load implements Mirror.
func (m *MemoryMirror) Load(ctx context.Context) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Booking{}, m.bookings...), nil
}

// Save implements Mirror.
func (m *MemoryMirror) Save(ctx context.Context, bookings []Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append([]Booking(nil), bookings...)
	return nil
}

// FileMirror stores the collection as JSON under a key in a single file,
// so several collections can share one file.
type FileMirror struct {
	path string
	key  string
	mu   sync.Mutex
}

// NewFileMirror creates a file mirror. The directory is created if needed;
// the file itself is created on first save.
func NewFileMirror(path, key string) (*FileMirror, error) {
	if key == "" {
		key = DefaultMirrorKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FileMirror{path: path, key: key}, nil
}

// DefaultMirrorPath returns ~/.concierge/bookings.json.
func DefaultMirrorPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".concierge", "bookings.json"), nil
}

func (f *FileMirror) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	all := map[string]json.RawMessage{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return all, nil
}

// Load implements Mirror. A corrupt entry reads as empty.
func (f *FileMirror) Load(ctx context.Context) ([]Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return nil, err
	}
	raw, ok := all[f.key]
	if !ok {
		return []Booking{}, nil
	}
	var bookings []Booking
	if err := json.Unmarshal(raw, &bookings); err != nil {
		return []Booking{}, nil
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return bookings, nil
}

// Save implements Mirror. The file is replaced atomically.
func (f *FileMirror) Save(ctx context.Context, bookings []Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		all = map[string]json.RawMessage{}
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	raw, err := json.Marshal(bookings)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	all[f.key] = raw

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
