package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel_server/core/domain"
)

func sampleItems() []domain.TravelItem {
	price := 412.5
	return []domain.TravelItem{
		{
			Type:        domain.ItemTypeFlight,
			Description: "JFK to ORD",
			StartTime:   "2030-07-20T10:00:00",
			Details: domain.TravelDetails{
				ConfirmationNumber: domain.Str("ABC123"),
				BookingStatus:      domain.BookingConfirmed,
				PricePaid:          &price,
				FlightNumber:       domain.Str("AA456"),
				DepartureAirport:   domain.Str("JFK"),
				ArrivalAirport:     domain.Str("ORD"),
			},
		},
		{
			Type:        domain.ItemTypeHotel,
			Description: "Hilton Chicago",
			StartTime:   "2030-07-20T15:00:00",
			EndTime:     domain.Str("2030-07-23T11:00:00"),
			Details: domain.TravelDetails{
				BookingStatus: domain.BookingCancelled,
				HotelName:     domain.Str("Hilton Chicago"),
			},
		},
	}
}

func TestFileTripAdapter_MissingFileStartsEmpty(t *testing.T) {
	a, err := NewFileTripAdapter(filepath.Join(t.TempDir(), "trips.json"))
	require.NoError(t, err)

	items, err := a.LoadTrips(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.NoError(t, a.Ping(context.Background()))
}

func TestFileTripAdapter_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "trips.json")

	a, err := NewFileTripAdapter(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveTrips(ctx, "u1", sampleItems()))
	require.NoError(t, a.SaveTrips(ctx, "u2", sampleItems()[:1]))

	reopened, err := NewFileTripAdapter(path)
	require.NoError(t, err)

	got, err := reopened.LoadTrips(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), got)

	users, err := reopened.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)
}

func TestFileTripAdapter_DocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.json")
	a, err := NewFileTripAdapter(path)
	require.NoError(t, err)
	require.NoError(t, a.SaveTrips(context.Background(), "u1", sampleItems()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"trips"`)
	assert.Contains(t, s, `"u1"`)
	assert.Contains(t, s, `"hotel_name": null`)
	assert.Contains(t, s, `"booking_status": "confirmed"`)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileTripAdapter_UnusableFile(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "{trips"},
		{name: "unknown top-level field", data: `{"trips": {}, "version": 2}`},
		{name: "unknown detail field", data: `{"trips": {"u1": [{"type": "flight", "description": "x", "start_time": "2030-01-01", "end_time": null, "details": {"seat": "1A"}}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "trips.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))

			a, err := NewFileTripAdapter(path)
			require.NoError(t, err)

			_, err = a.LoadTrips(ctx, "u1")
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.Error(t, a.Ping(ctx))
			assert.Error(t, a.SaveTrips(ctx, "u1", sampleItems()))

			// The corrupt file is left untouched
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.data, string(data))
		})
	}
}

func TestFileTripAdapter_EmptyFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trips.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	a, err := NewFileTripAdapter(path)
	require.NoError(t, err)
	items, err := a.LoadTrips(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileTripAdapter_LoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	a, err := NewFileTripAdapter(filepath.Join(t.TempDir(), "trips.json"))
	require.NoError(t, err)
	require.NoError(t, a.SaveTrips(ctx, "u1", sampleItems()))

	got, err := a.LoadTrips(ctx, "u1")
	require.NoError(t, err)
	*got[0].Details.FlightNumber = "XX000"

	again, err := a.LoadTrips(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "AA456", domain.Deref(again[0].Details.FlightNumber))
}

func TestFileTripAdapter_RejectsEmptyUser(t *testing.T) {
	a, err := NewFileTripAdapter(filepath.Join(t.TempDir(), "trips.json"))
	require.NoError(t, err)
	assert.ErrorIs(t, a.SaveTrips(context.Background(), "", nil), ErrInvalidUser)
}
