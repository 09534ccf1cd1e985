package itinerary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/pkg/apperr"
	"travel_server/pkg/logger"
	"travel_server/pkg/metrics"
)

// MalformedStartPolicy decides where an item with an unparseable start_time
// sits on the timeline during retrieval.
type MalformedStartPolicy string

const (
	// MalformedAsNow treats the item as starting now, so it is not upcoming.
	MalformedAsNow    MalformedStartPolicy = "now"
	MalformedAsPast   MalformedStartPolicy = "past"
	MalformedAsFuture MalformedStartPolicy = "future"
)

// ParseMalformedStartPolicy maps a config value to a policy
func ParseMalformedStartPolicy(s string) (MalformedStartPolicy, error) {
	switch p := MalformedStartPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", MalformedAsNow:
		return MalformedAsNow, nil
	case MalformedAsPast, MalformedAsFuture:
		return p, nil
	default:
		return "", fmt.Errorf("unknown malformed start policy %q", s)
	}
}

// TripQuery filters GetUserTrips
type TripQuery struct {
	IncludePast      bool
	IncludeCancelled bool
}

// Store applies merge decisions against a TripRepository.
// Merges for one user are serialized; different users proceed in parallel.
type Store struct {
	repo   out.TripRepository
	now    func() time.Time
	loc    *time.Location
	policy MalformedStartPolicy
	log    *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithStoreClock injects the clock used by retrieval
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithStoreLocation sets the zone for zone-less start times
func WithStoreLocation(loc *time.Location) StoreOption {
	return func(s *Store) { s.loc = loc }
}

// WithMalformedStartPolicy overrides the default MalformedAsNow
func WithMalformedStartPolicy(p MalformedStartPolicy) StoreOption {
	return func(s *Store) { s.policy = p }
}

// NewStore creates a store over repo
func NewStore(repo out.TripRepository, opts ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		now:    time.Now,
		loc:    time.Local,
		policy: MalformedAsNow,
		log:    logger.WithField("component", "itinerary"),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// AddOrMerge reconciles candidate with the user's stored items and persists
// the result before returning.
//
// Items are scanned in storage order. On the first match a cancelled
// candidate cancels the stored item and an active candidate replaces an
// active stored item. A stored cancelled item does not absorb an active
// candidate: scanning continues past it. With no terminal match the
// candidate is appended.
func (s *Store) AddOrMerge(ctx context.Context, userID string, candidate domain.TravelItem) (*domain.MergeResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.MissingField("user_id")
	}
	candidate = candidate.Clone()
	candidate.Normalize()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.repo.LoadTrips(ctx, userID)
	if err != nil {
		return nil, apperr.StorageError("load trips", err)
	}

	outcome, idx := domain.MergeAdded, -1
	for i := range items {
		existing := &items[i]
		if !IsSameBooking(existing, &candidate) {
			continue
		}
		if candidate.IsCancelled() {
			existing.Details.BookingStatus = domain.BookingCancelled
			outcome, idx = domain.MergeCancelled, i
			break
		}
		if !existing.IsCancelled() {
			items[i] = candidate
			outcome, idx = domain.MergeUpdated, i
			break
		}
	}
	if idx < 0 {
		items = append(items, candidate)
		idx = len(items) - 1
	}

	if err := s.repo.SaveTrips(ctx, userID, items); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to persist trips")
		return nil, apperr.StorageError("save trips", err)
	}

	metrics.RecordMerge(string(outcome))
	s.log.WithFields(map[string]any{
		"user_id": userID,
		"outcome": string(outcome),
		"type":    string(candidate.Type),
	}).Info("travel item merged")

	return &domain.MergeResult{Outcome: outcome, Item: items[idx].Clone()}, nil
}

// GetUserTrips returns copies of the user's items sorted by start time.
// By default only active items strictly in the future are returned.
// A storage read failure yields an empty result and is logged.
func (s *Store) GetUserTrips(ctx context.Context, userID string, q TripQuery) []domain.TravelItem {
	items, err := s.repo.LoadTrips(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to read trips")
		return []domain.TravelItem{}
	}

	now := s.now()
	type keyed struct {
		item  domain.TravelItem
		start time.Time
	}
	selected := make([]keyed, 0, len(items))
	for _, item := range items {
		if !q.IncludeCancelled && item.IsCancelled() {
			continue
		}
		start := s.startOf(&item, now)
		if !q.IncludePast && !start.After(now) {
			continue
		}
		selected = append(selected, keyed{item: item.Clone(), start: start})
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].start.Before(selected[j].start)
	})

	result := make([]domain.TravelItem, len(selected))
	for i := range selected {
		result[i] = selected[i].item
	}
	return result
}

// Users lists users with stored trips
func (s *Store) Users(ctx context.Context) ([]string, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.StorageError("list users", err)
	}
	sort.Strings(users)
	return users, nil
}

// Ping checks the backing repository
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Location returns the zone used for zone-less timestamps
func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) startOf(item *domain.TravelItem, now time.Time) time.Time {
	if t, ok := item.Start(s.loc); ok {
		return t
	}
	switch s.policy {
	case MalformedAsPast:
		return time.Time{}
	case MalformedAsFuture:
		return time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
	default:
		return now
	}
}
