package domain

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goccy/go-json"

	"travel_server/pkg/apperr"
)

// TravelItemType is the closed set of bookable units
type TravelItemType string

const (
	ItemTypeFlight   TravelItemType = "flight"
	ItemTypeHotel    TravelItemType = "hotel"
	ItemTypeActivity TravelItemType = "activity"
)

// IsValid reports whether t is one of the known item types
func (t TravelItemType) IsValid() bool {
	switch t {
	case ItemTypeFlight, ItemTypeHotel, ItemTypeActivity:
		return true
	}
	return false
}

// BookingStatus is the only authority on whether an item is active
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingPending   BookingStatus = "pending"
)

// IsValid reports whether s is one of the known booking statuses
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingConfirmed, BookingCancelled, BookingPending:
		return true
	}
	return false
}

// TravelDetails is the closed bag of optional per-type fields.
// Nil pointers serialize as null so stored documents keep every key.
type TravelDetails struct {
	// Common
	ConfirmationNumber *string       `json:"confirmation_number" bson:"confirmation_number"`
	BookingStatus      BookingStatus `json:"booking_status" bson:"booking_status"`
	PricePaid          *float64      `json:"price_paid" bson:"price_paid"`
	BookingDate        *string       `json:"booking_date" bson:"booking_date"`

	// Flight
	FlightNumber     *string `json:"flight_number" bson:"flight_number"`
	DepartureAirport *string `json:"departure_airport" bson:"departure_airport"`
	ArrivalAirport   *string `json:"arrival_airport" bson:"arrival_airport"`
	Airline          *string `json:"airline" bson:"airline"`

	// Hotel
	HotelName    *string `json:"hotel_name" bson:"hotel_name"`
	RoomType     *string `json:"room_type" bson:"room_type"`
	CheckInTime  *string `json:"check_in_time" bson:"check_in_time"`
	CheckOutTime *string `json:"check_out_time" bson:"check_out_time"`

	// Activity
	ActivityName *string `json:"activity_name" bson:"activity_name"`
	Location     *string `json:"location" bson:"location"`
	TicketType   *string `json:"ticket_type" bson:"ticket_type"`
}

// TravelItem is one booked unit: a flight leg, a hotel stay or an activity.
type TravelItem struct {
	Type        TravelItemType `json:"type" bson:"type"`
	Description string         `json:"description" bson:"description"`
	StartTime   string         `json:"start_time" bson:"start_time"`
	EndTime     *string        `json:"end_time" bson:"end_time"`
	Details     TravelDetails  `json:"details" bson:"details"`
}

// Trip is the per-user collection of travel items in storage order
type Trip struct {
	UserID string       `json:"user_id" bson:"user_id"`
	Items  []TravelItem `json:"items" bson:"items"`
}

// MergeOutcome is the result of reconciling a candidate against stored items
type MergeOutcome string

const (
	MergeAdded     MergeOutcome = "added"
	MergeUpdated   MergeOutcome = "updated"
	MergeCancelled MergeOutcome = "cancelled"
)

// MergeResult pairs an outcome with the item as stored after the merge
type MergeResult struct {
	Outcome MergeOutcome `json:"status"`
	Item    TravelItem   `json:"item"`
}

// Str returns a pointer to s, or nil for the empty string.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Confirmation returns the confirmation number as stored, "" when absent
func (d TravelDetails) Confirmation() string {
	return Deref(d.ConfirmationNumber)
}

// Status returns the booking status, defaulting to confirmed
func (d TravelDetails) Status() BookingStatus {
	if d.BookingStatus == "" {
		return BookingConfirmed
	}
	return d.BookingStatus
}

// IsCancelled reports whether the item's booking status is cancelled
func (i *TravelItem) IsCancelled() bool {
	return i.Details.Status() == BookingCancelled
}

// Normalize applies field defaults. Call before Validate.
func (i *TravelItem) Normalize() {
	i.Type = TravelItemType(strings.ToLower(strings.TrimSpace(string(i.Type))))
	i.StartTime = strings.TrimSpace(i.StartTime)
	if i.Details.BookingStatus == "" {
		i.Details.BookingStatus = BookingConfirmed
	}
	i.Details.BookingStatus = BookingStatus(strings.ToLower(string(i.Details.BookingStatus)))
}

// Validate checks the closed enumerations and required fields
func (i *TravelItem) Validate() error {
	if !i.Type.IsValid() {
		return apperr.InvalidInput("type", fmt.Sprintf("must be one of flight, hotel, activity (got %q)", i.Type))
	}
	if strings.TrimSpace(i.Description) == "" {
		return apperr.MissingField("description")
	}
	if i.StartTime == "" {
		return apperr.MissingField("start_time")
	}
	if !i.Details.Status().IsValid() {
		return apperr.InvalidInput("details.booking_status",
			fmt.Sprintf("must be one of confirmed, cancelled, pending (got %q)", i.Details.BookingStatus))
	}
	if i.Details.PricePaid != nil && *i.Details.PricePaid < 0 {
		return apperr.InvalidInput("details.price_paid", "must not be negative")
	}
	return nil
}

// Clone returns a deep copy so callers never alias stored items.
func (i TravelItem) Clone() TravelItem {
	c := i
	c.EndTime = cloneStr(i.EndTime)
	d := i.Details
	c.Details = TravelDetails{
		ConfirmationNumber: cloneStr(d.ConfirmationNumber),
		BookingStatus:      d.BookingStatus,
		BookingDate:        cloneStr(d.BookingDate),
		FlightNumber:       cloneStr(d.FlightNumber),
		DepartureAirport:   cloneStr(d.DepartureAirport),
		ArrivalAirport:     cloneStr(d.ArrivalAirport),
		Airline:            cloneStr(d.Airline),
		HotelName:          cloneStr(d.HotelName),
		RoomType:           cloneStr(d.RoomType),
		CheckInTime:        cloneStr(d.CheckInTime),
		CheckOutTime:       cloneStr(d.CheckOutTime),
		ActivityName:       cloneStr(d.ActivityName),
		Location:           cloneStr(d.Location),
		TicketType:         cloneStr(d.TicketType),
	}
	if d.PricePaid != nil {
		p := *d.PricePaid
		c.Details.PricePaid = &p
	}
	return c
}

// CloneItems deep-copies a slice of items
func CloneItems(items []TravelItem) []TravelItem {
	if items == nil {
		return nil
	}
	out := make([]TravelItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// DecodeTravelItem strictly decodes a single item. Unknown fields at any
// level are rejected, then defaults are applied and the item is validated.
func DecodeTravelItem(data []byte) (*TravelItem, error) {
	var item TravelItem
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&item); err != nil {
		return nil, apperr.ValidationFailed("invalid travel item").WithError(err)
	}
	item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return &item, nil
}

// DecodeTravelItems strictly decodes a list of stored items.
func DecodeTravelItems(data []byte) ([]TravelItem, error) {
	var items []TravelItem
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode travel items: %w", err)
	}
	return items, nil
}

// ISO-8601 forms, with and without an offset. "Z07:00" also accepts "Z".
var startTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// ParseTimestamp reads an ISO-8601 timestamp. A space or lowercase t may
// separate date and time. Zone-less values are placed in loc. Anything else
// is handed to dateparse before giving up.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	iso := s
	if len(iso) > 10 && (iso[10] == ' ' || iso[10] == 't') {
		iso = iso[:10] + "T" + iso[11:]
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.ParseInLocation(layout, iso, loc); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Start parses StartTime
func (i *TravelItem) Start(loc *time.Location) (time.Time, bool) {
	return ParseTimestamp(i.StartTime, loc)
}

// End parses EndTime when present
func (i *TravelItem) End(loc *time.Location) (time.Time, bool) {
	if i.EndTime == nil {
		return time.Time{}, false
	}
	return ParseTimestamp(*i.EndTime, loc)
}
