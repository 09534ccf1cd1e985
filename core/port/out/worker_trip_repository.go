// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"

	"travel_server/core/domain"
)

// TripRepository persists each user's travel items as one keyed document.
// Implementations must round-trip items exactly and keep storage order.
type TripRepository interface {
	// LoadTrips returns the stored items for userID, or nil when none exist.
	LoadTrips(ctx context.Context, userID string) ([]domain.TravelItem, error)
	// SaveTrips replaces the stored items for userID and is durable on return.
	SaveTrips(ctx context.Context, userID string, items []domain.TravelItem) error
	ListUsers(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
