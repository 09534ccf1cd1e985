package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"travel_server/pkg/apperr"
)

func TestParseTimestamp(t *testing.T) {
	plus2 := time.FixedZone("", 2*3600)

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2030-07-20T10:00:00+02:00", time.Date(2030, 7, 20, 10, 0, 0, 0, plus2), true},
		{"2030-07-20T10:00+02:00", time.Date(2030, 7, 20, 10, 0, 0, 0, plus2), true},
		{"2030-07-20 10:00:00+02:00", time.Date(2030, 7, 20, 10, 0, 0, 0, plus2), true},
		{"2030-07-20 10:00+0200", time.Date(2030, 7, 20, 10, 0, 0, 0, plus2), true},
		{"2030-07-20T10:00:00+02", time.Date(2030, 7, 20, 10, 0, 0, 0, plus2), true},
		{"2030-07-20T10:00Z", time.Date(2030, 7, 20, 10, 0, 0, 0, time.UTC), true},
		{"2030-07-20T10:00:00.5Z", time.Date(2030, 7, 20, 10, 0, 0, 5e8, time.UTC), true},
		{"2030-07-20t10:00:00", time.Date(2030, 7, 20, 10, 0, 0, 0, time.UTC), true},
		{"2030-07-20 10:00", time.Date(2030, 7, 20, 10, 0, 0, 0, time.UTC), true},
		{"2030-07-20", time.Date(2030, 7, 20, 0, 0, 0, 0, time.UTC), true},
		{"  2030-07-20T10:00:00  ", time.Date(2030, 7, 20, 10, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"sometime soon", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in, time.UTC)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			}
		})
	}
}

func TestConfirmation(t *testing.T) {
	assert.Equal(t, "", TravelDetails{}.Confirmation())
	assert.Equal(t, " ABC123", TravelDetails{ConfirmationNumber: Str(" ABC123")}.Confirmation())
}

func TestDecodeTravelItem(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"valid", `{"type":"Flight","description":"LAX to ORD","start_time":"2030-07-20T10:00Z","details":{"flight_number":"AA1"}}`, ""},
		{"unknown details field", `{"type":"flight","description":"x","start_time":"2030-07-20","details":{"seat":"12A"}}`, apperr.CodeValidationFailed},
		{"bad type", `{"type":"train","description":"x","start_time":"2030-07-20"}`, apperr.CodeInvalidInput},
		{"missing start", `{"type":"flight","description":"x"}`, apperr.CodeMissingField},
		{"bad status", `{"type":"hotel","description":"x","start_time":"2030-07-20","details":{"booking_status":"maybe"}}`, apperr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := DecodeTravelItem([]byte(tt.body))
			if tt.wantCode == "" {
				assert.NoError(t, err)
				assert.Equal(t, ItemTypeFlight, item.Type)
				assert.Equal(t, BookingConfirmed, item.Details.BookingStatus)
				return
			}
			assert.True(t, apperr.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}
