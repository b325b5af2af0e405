package booking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisMirror stores the collection as one JSON value under a Redis key.
type RedisMirror struct {
	rdb *redis.Client
	key string
}

// NewRedisMirror creates a mirror on rdb.
func NewRedisMirror(rdb *redis.Client, key string) *RedisMirror {
	if key == "" {
		key = DefaultMirrorKey
	}
	return &RedisMirror{rdb: rdb, key: key}
}

// Load implements Mirror. A missing or corrupt value reads as empty.
func (m *RedisMirror) Load(ctx context.Context) ([]Booking, error) {
	data, err := m.rdb.Get(ctx, m.key).Bytes()
	if err == redis.Nil {
		return []Booking{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror: %w", err)
	}

	var bookings []Booking
	if err := json.Unmarshal(data, &bookings); err != nil || bookings == nil {
		return []Booking{}, nil
	}
	return bookings, nil
}

// Save implements Mirror. The value never expires.
func (m *RedisMirror) Save(ctx context.Context, bookings []Booking) error {
	if bookings == nil {
		bookings = []Booking{}
	}
	data, err := json.Marshal(bookings)
	if err != nil {
		return fmt.Errorf("failed to marshal mirror: %w", err)
	}
	if err := m.rdb.Set(ctx, m.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save mirror: %w", err)
	}
	return nil
}
