package tools

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"travel_server/core/domain"
	"travel_server/pkg/apperr"
)

// StoreTravelItemName is the function the extraction agent calls once per booking
const StoreTravelItemName = "store_travel_item"

// StoreTravelItemParams is the ordered parameter list of store_travel_item
var StoreTravelItemParams = []ParameterSpec{
	{Name: "item_type", Type: "string", Description: "Kind of booking", Required: true, Enum: []string{"flight", "hotel", "activity"}},
	{Name: "description", Type: "string", Description: "Short human readable summary", Required: true},
	{Name: "start_time", Type: "string", Description: "ISO-8601 start, e.g. 2024-07-20T08:15:00", Required: true},
	{Name: "end_time", Type: "string", Description: "ISO-8601 end if known"},
	{Name: "confirmation_number", Type: "string", Description: "Booking or confirmation reference"},
	{Name: "booking_status", Type: "string", Description: "Status stated in the email", Enum: []string{"confirmed", "cancelled", "pending"}},
	{Name: "price_paid", Type: "number", Description: "Total price paid"},
	{Name: "booking_date", Type: "string", Description: "Date the booking was made"},
	{Name: "flight_number", Type: "string", Description: "Flight number, e.g. AA456"},
	{Name: "departure_airport", Type: "string", Description: "Departure airport code"},
	{Name: "arrival_airport", Type: "string", Description: "Arrival airport code"},
	{Name: "airline", Type: "string", Description: "Operating airline"},
	{Name: "hotel_name", Type: "string", Description: "Hotel name"},
	{Name: "room_type", Type: "string", Description: "Room type"},
	{Name: "check_in_time", Type: "string", Description: "Hotel check-in time"},
	{Name: "check_out_time", Type: "string", Description: "Hotel check-out time"},
	{Name: "activity_name", Type: "string", Description: "Activity or tour name"},
	{Name: "location", Type: "string", Description: "Activity location"},
	{Name: "ticket_type", Type: "string", Description: "Ticket type"},
}

// StoreTravelItemDefinition returns the function definition sent to the LLM
func StoreTravelItemDefinition() ToolDefinition {
	return NewDefinition(
		StoreTravelItemName,
		"Store one confirmed, cancelled or pending travel booking found in the email.",
		CategoryTravel,
		StoreTravelItemParams,
	)
}

// storeTravelItemArgs mirrors StoreTravelItemParams. user_id is tolerated
// because models copy it from the prompt; the caller's user wins.
type storeTravelItemArgs struct {
	UserID             *string  `json:"user_id"`
	ItemType           string   `json:"item_type"`
	Description        string   `json:"description"`
	StartTime          string   `json:"start_time"`
	EndTime            *string  `json:"end_time"`
	ConfirmationNumber *string  `json:"confirmation_number"`
	BookingStatus      string   `json:"booking_status"`
	PricePaid          *float64 `json:"price_paid"`
	BookingDate        *string  `json:"booking_date"`
	FlightNumber       *string  `json:"flight_number"`
	DepartureAirport   *string  `json:"departure_airport"`
	ArrivalAirport     *string  `json:"arrival_airport"`
	Airline            *string  `json:"airline"`
	HotelName          *string  `json:"hotel_name"`
	RoomType           *string  `json:"room_type"`
	CheckInTime        *string  `json:"check_in_time"`
	CheckOutTime       *string  `json:"check_out_time"`
	ActivityName       *string  `json:"activity_name"`
	Location           *string  `json:"location"`
	TicketType         *string  `json:"ticket_type"`
}

// ParseStoreTravelItem strictly decodes raw store_travel_item arguments into
// a validated item. Unknown argument names are rejected.
func ParseStoreTravelItem(raw []byte) (domain.TravelItem, error) {
	var args storeTravelItemArgs
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return domain.TravelItem{}, apperr.ValidationFailed("invalid store_travel_item arguments").WithError(err)
	}

	item := domain.TravelItem{
		Type:        domain.TravelItemType(args.ItemType),
		Description: args.Description,
		StartTime:   args.StartTime,
		EndTime:     blankToNil(args.EndTime),
		Details: domain.TravelDetails{
			ConfirmationNumber: blankToNil(args.ConfirmationNumber),
			BookingStatus:      domain.BookingStatus(args.BookingStatus),
			PricePaid:          args.PricePaid,
			BookingDate:        blankToNil(args.BookingDate),
			FlightNumber:       blankToNil(args.FlightNumber),
			DepartureAirport:   blankToNil(args.DepartureAirport),
			ArrivalAirport:     blankToNil(args.ArrivalAirport),
			Airline:            blankToNil(args.Airline),
			HotelName:          blankToNil(args.HotelName),
			RoomType:           blankToNil(args.RoomType),
			CheckInTime:        blankToNil(args.CheckInTime),
			CheckOutTime:       blankToNil(args.CheckOutTime),
			ActivityName:       blankToNil(args.ActivityName),
			Location:           blankToNil(args.Location),
			TicketType:         blankToNil(args.TicketType),
		},
	}
	item.Normalize()
	if err := item.Validate(); err != nil {
		return domain.TravelItem{}, err
	}
	return item, nil
}

// ParseToolCall validates a decoded tool call
func ParseToolCall(call ToolCall) (domain.TravelItem, error) {
	if call.Name != StoreTravelItemName {
		return domain.TravelItem{}, apperr.BadRequest(fmt.Sprintf("unknown tool %q", call.Name))
	}
	raw, err := json.Marshal(call.Args)
	if err != nil {
		return domain.TravelItem{}, apperr.ValidationFailed("unencodable tool arguments").WithError(err)
	}
	return ParseStoreTravelItem(raw)
}

func blankToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
