package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"travel_server/core/domain"
	"travel_server/core/port/out"
)

// RedisTripAdapter stores each user's items as a JSON array under prefix+userID.
type RedisTripAdapter struct {
	client *redis.Client
	prefix string
}

var _ out.TripRepository = (*RedisTripAdapter)(nil)

// NewRedisTripAdapter creates an adapter with the given key prefix
func NewRedisTripAdapter(client *redis.Client, prefix string) *RedisTripAdapter {
	if prefix == "" {
		prefix = "travel:trips:"
	}
	return &RedisTripAdapter{client: client, prefix: prefix}
}

func (a *RedisTripAdapter) key(userID string) string {
	return a.prefix + userID
}

// LoadTrips returns nil when the key does not exist
func (a *RedisTripAdapter) LoadTrips(ctx context.Context, userID string) ([]domain.TravelItem, error) {
	data, err := a.client.Get(ctx, a.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := domain.DecodeTravelItems(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return items, nil
}

// SaveTrips overwrites the user's key without expiry
func (a *RedisTripAdapter) SaveTrips(ctx context.Context, userID string, items []domain.TravelItem) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if items == nil {
		items = []domain.TravelItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode trips: %w", err)
	}
	return a.client.Set(ctx, a.key(userID), data, 0).Err()
}

// ListUsers scans the key space under the prefix
func (a *RedisTripAdapter) ListUsers(ctx context.Context) ([]string, error) {
	var (
		users  []string
		cursor uint64
	)
	for {
		keys, next, err := a.client.Scan(ctx, cursor, a.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			users = append(users, strings.TrimPrefix(k, a.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(users)
	return users, nil
}

func (a *RedisTripAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

func (a *RedisTripAdapter) Close() error {
	return a.client.Close()
}
