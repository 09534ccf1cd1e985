package itinerary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel_server/core/domain"
	"travel_server/core/port/out"
	"travel_server/pkg/apperr"
)

// memRepo is an in-memory TripRepository with injectable failures
type memRepo struct {
	mu      sync.Mutex
	data    map[string][]domain.TravelItem
	saves   int
	loadErr error
	saveErr error
}

var _ out.TripRepository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{data: make(map[string][]domain.TravelItem)}
}

func (r *memRepo) LoadTrips(_ context.Context, userID string) ([]domain.TravelItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return domain.CloneItems(r.data[userID]), nil
}

func (r *memRepo) SaveTrips(_ context.Context, userID string, items []domain.TravelItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.data[userID] = domain.CloneItems(items)
	return nil
}

func (r *memRepo) ListUsers(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.data))
	for u := range r.data {
		users = append(users, u)
	}
	return users, nil
}

func (r *memRepo) Ping(context.Context) error { return nil }
func (r *memRepo) Close() error               { return nil }

func (r *memRepo) stored(userID string) []domain.TravelItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.CloneItems(r.data[userID])
}

var storeNow = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(repo *memRepo, opts ...StoreOption) *Store {
	opts = append([]StoreOption{
		WithStoreClock(func() time.Time { return storeNow }),
		WithStoreLocation(time.UTC),
	}, opts...)
	return NewStore(repo, opts...)
}

func cancelled(item domain.TravelItem) domain.TravelItem {
	item.Details.BookingStatus = domain.BookingCancelled
	return item
}

func TestStore_ScenarioA_AddToEmpty(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)

	res, err := s.AddOrMerge(context.Background(), "u1", flight("ABC123", "AA456", "JFK", "ORD", "2024-07-20T10:00:00"))
	require.NoError(t, err)
	assert.Equal(t, domain.MergeAdded, res.Outcome)
	assert.Len(t, repo.stored("u1"), 1)
	assert.Equal(t, 1, repo.saves)
}

func TestStore_ScenarioB_Cancellation(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()

	_, err := s.AddOrMerge(ctx, "u1", flight("ABC123", "AA456", "JFK", "ORD", "2024-07-20T10:00:00"))
	require.NoError(t, err)

	cancel := domain.TravelItem{
		Type:        domain.ItemTypeFlight,
		Description: "Cancelled flight",
		StartTime:   "2024-07-20T10:00:00",
		Details: domain.TravelDetails{
			ConfirmationNumber: domain.Str("ABC123"),
			BookingStatus:      domain.BookingCancelled,
		},
	}
	res, err := s.AddOrMerge(ctx, "u1", cancel)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeCancelled, res.Outcome)
	assert.True(t, res.Item.IsCancelled())

	stored := repo.stored("u1")
	require.Len(t, stored, 1)
	assert.True(t, stored[0].IsCancelled())
	// Only the status changes on cancellation
	assert.Equal(t, "Flight AA456", stored[0].Description)

	assert.Empty(t, s.GetUserTrips(ctx, "u1", TripQuery{}))
	assert.Len(t, s.GetUserTrips(ctx, "u1", TripQuery{IncludeCancelled: true}), 1)
}

func TestStore_ScenarioD_HotelUpdateWithoutConfirmation(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()

	first := hotel("", "Hilton Midtown", "2024-08-01T15:00:00", "2024-08-05T11:00:00")
	_, err := s.AddOrMerge(ctx, "u1", first)
	require.NoError(t, err)

	second := hotel("", "Hilton Midtown", "2024-08-01T15:00:00", "2024-08-05T11:00:00")
	second.Details.RoomType = domain.Str("King suite")
	res, err := s.AddOrMerge(ctx, "u1", second)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeUpdated, res.Outcome)

	stored := repo.stored("u1")
	require.Len(t, stored, 1)
	assert.Equal(t, "King suite", domain.Deref(stored[0].Details.RoomType))
}

func TestStore_Idempotence(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()
	item := activity("TOUR99", "Louvre tour", "Paris", "2024-09-01T09:00:00")

	res, err := s.AddOrMerge(ctx, "u1", item)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeAdded, res.Outcome)

	for i := 0; i < 3; i++ {
		res, err = s.AddOrMerge(ctx, "u1", item)
		require.NoError(t, err)
		assert.Equal(t, domain.MergeUpdated, res.Outcome)
	}
	assert.Len(t, repo.stored("u1"), 1)
}

func TestStore_CancellationIsMonotonic(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()
	item := flight("ABC123", "AA456", "JFK", "ORD", "2024-07-20T10:00:00")

	_, err := s.AddOrMerge(ctx, "u1", item)
	require.NoError(t, err)
	_, err = s.AddOrMerge(ctx, "u1", cancelled(item))
	require.NoError(t, err)

	// A later active copy of the same booking does not revive it
	res, err := s.AddOrMerge(ctx, "u1", item)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeAdded, res.Outcome)

	stored := repo.stored("u1")
	require.Len(t, stored, 2)
	assert.True(t, stored[0].IsCancelled())
	assert.False(t, stored[1].IsCancelled())
}

func TestStore_ContinueScanningPastCancelledMatch(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()

	// Two stored copies of one booking, the first cancelled
	item := flight("", "AA456", "JFK", "ORD", "2024-07-20T10:00:00")
	repo.data["u1"] = []domain.TravelItem{cancelled(item), item}

	updated := item
	updated.Description = "Flight AA456, seat 14C"
	res, err := s.AddOrMerge(ctx, "u1", updated)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeUpdated, res.Outcome)

	stored := repo.stored("u1")
	require.Len(t, stored, 2)
	assert.True(t, stored[0].IsCancelled())
	assert.Equal(t, "Flight AA456, seat 14C", stored[1].Description)
}

func TestStore_CancelledCandidateWithoutMatchIsAppended(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)

	res, err := s.AddOrMerge(context.Background(), "u1", cancelled(flight("NEW111", "UA1", "SFO", "SEA", "2024-07-01")))
	require.NoError(t, err)
	assert.Equal(t, domain.MergeAdded, res.Outcome)
	assert.True(t, repo.stored("u1")[0].IsCancelled())
}

func TestStore_AddOrMergeErrors(t *testing.T) {
	ctx := context.Background()
	valid := flight("ABC123", "AA456", "JFK", "ORD", "2024-07-20T10:00:00")

	t.Run("write failure propagates", func(t *testing.T) {
		repo := newMemRepo()
		repo.saveErr = errors.New("disk full")
		s := newTestStore(repo)

		_, err := s.AddOrMerge(ctx, "u1", valid)
		require.Error(t, err)
		assert.True(t, apperr.HasCode(err, apperr.CodeStorageError))
		assert.ErrorIs(t, err, repo.saveErr)
	})

	t.Run("read failure propagates", func(t *testing.T) {
		repo := newMemRepo()
		repo.loadErr = errors.New("corrupt")
		s := newTestStore(repo)

		_, err := s.AddOrMerge(ctx, "u1", valid)
		assert.Error(t, err)
		assert.Equal(t, 0, repo.saves)
	})

	t.Run("invalid candidate rejected", func(t *testing.T) {
		repo := newMemRepo()
		s := newTestStore(repo)
		bad := valid
		bad.Type = "train"

		_, err := s.AddOrMerge(ctx, "u1", bad)
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidInput))
		assert.Equal(t, 0, repo.saves)
	})

	t.Run("missing user", func(t *testing.T) {
		s := newTestStore(newMemRepo())
		_, err := s.AddOrMerge(ctx, " ", valid)
		assert.True(t, apperr.HasCode(err, apperr.CodeMissingField))
	})
}

func TestStore_GetUserTrips(t *testing.T) {
	repo := newMemRepo()
	repo.data["u1"] = []domain.TravelItem{
		flight("F2", "AA2", "JFK", "ORD", "2024-09-01T08:00:00"),
		flight("F0", "AA0", "JFK", "ORD", "2024-05-01T08:00:00"),
		cancelled(flight("F3", "AA3", "JFK", "ORD", "2024-07-01T08:00:00")),
		hotel("H1", "Hilton", "2024-07-15T15:00:00", "2024-07-18T11:00:00"),
		activity("A1", "Broken", "Nowhere", "sometime soon"),
	}

	descriptions := func(items []domain.TravelItem) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = it.Description
		}
		return out
	}

	tests := []struct {
		name   string
		policy MalformedStartPolicy
		query  TripQuery
		want   []string
	}{
		{
			name:  "default excludes past cancelled and malformed",
			query: TripQuery{},
			want:  []string{"Stay at Hilton", "Flight AA2"},
		},
		{
			name:  "include past keeps malformed at now",
			query: TripQuery{IncludePast: true},
			want:  []string{"Flight AA0", "Broken", "Stay at Hilton", "Flight AA2"},
		},
		{
			name:  "include everything",
			query: TripQuery{IncludePast: true, IncludeCancelled: true},
			want:  []string{"Flight AA0", "Broken", "Flight AA3", "Stay at Hilton", "Flight AA2"},
		},
		{
			name:   "malformed treated as future",
			policy: MalformedAsFuture,
			query:  TripQuery{},
			want:   []string{"Stay at Hilton", "Flight AA2", "Broken"},
		},
		{
			name:   "malformed treated as past sorts first",
			policy: MalformedAsPast,
			query:  TripQuery{IncludePast: true},
			want:   []string{"Broken", "Flight AA0", "Stay at Hilton", "Flight AA2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []StoreOption
			if tt.policy != "" {
				opts = append(opts, WithMalformedStartPolicy(tt.policy))
			}
			s := newTestStore(repo, opts...)
			assert.Equal(t, tt.want, descriptions(s.GetUserTrips(context.Background(), "u1", tt.query)))
		})
	}
}

func TestStore_GetUserTripsOffsetForms(t *testing.T) {
	starts := []string{
		"2030-07-20T10:00:00+02:00",
		"2030-07-20T10:00+02:00",
		"2030-07-20 10:00:00+02:00",
		"2030-07-20T10:00Z",
		"2030-07-20t10:00:00.250Z",
	}
	for _, start := range starts {
		t.Run(start, func(t *testing.T) {
			repo := newMemRepo()
			s := newTestStore(repo)

			res, err := s.AddOrMerge(context.Background(), "u1", flight("C-"+start, "AA1", "JFK", "ORD", start))
			require.NoError(t, err)
			assert.Equal(t, domain.MergeAdded, res.Outcome)

			assert.Len(t, s.GetUserTrips(context.Background(), "u1", TripQuery{}), 1)
		})
	}
}

func TestStore_GetUserTripsReturnsCopies(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()
	_, err := s.AddOrMerge(ctx, "u1", hotel("H1", "Hilton", "2024-07-15T15:00:00", "2024-07-18T11:00:00"))
	require.NoError(t, err)

	got := s.GetUserTrips(ctx, "u1", TripQuery{})
	require.Len(t, got, 1)
	*got[0].Details.HotelName = "Mutated"
	got[0].Details.BookingStatus = domain.BookingCancelled

	again := s.GetUserTrips(ctx, "u1", TripQuery{})
	require.Len(t, again, 1)
	assert.Equal(t, "Hilton", domain.Deref(again[0].Details.HotelName))
}

func TestStore_GetUserTripsReadFailure(t *testing.T) {
	repo := newMemRepo()
	repo.loadErr = errors.New("unreadable")
	s := newTestStore(repo)

	got := s.GetUserTrips(context.Background(), "u1", TripQuery{IncludePast: true})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_ConcurrentMergesSerializePerUser(t *testing.T) {
	repo := newMemRepo()
	s := newTestStore(repo)
	ctx := context.Background()
	item := flight("ABC123", "AA456", "JFK", "ORD", "2024-07-20T10:00:00")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddOrMerge(ctx, "u1", item)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.stored("u1"), 1)
}

func TestParseMalformedStartPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MalformedStartPolicy
		wantErr bool
	}{
		{"", MalformedAsNow, false},
		{"NOW", MalformedAsNow, false},
		{"past", MalformedAsPast, false},
		{" future ", MalformedAsFuture, false},
		{"never", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMalformedStartPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
