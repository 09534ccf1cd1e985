// Package itinerary reconciles extracted bookings with stored trips.
package itinerary

import (
	"travel_server/core/domain"
)

// IsSameBooking reports whether candidate refers to the same booking as existing.
//
// When both carry a confirmation number, that number alone decides. Otherwise
// the items must share a type and agree on the identity fields of that type.
func IsSameBooking(existing, candidate *domain.TravelItem) bool {
	if existing == nil || candidate == nil {
		return false
	}

	ec, cc := existing.Details.Confirmation(), candidate.Details.Confirmation()
	if ec != "" && cc != "" {
		return ec == cc
	}

	if existing.Type != candidate.Type {
		return false
	}

	e, c := existing.Details, candidate.Details
	switch existing.Type {
	case domain.ItemTypeFlight:
		return eq(e.FlightNumber, c.FlightNumber) &&
			eq(e.DepartureAirport, c.DepartureAirport) &&
			eq(e.ArrivalAirport, c.ArrivalAirport) &&
			existing.StartTime == candidate.StartTime
	case domain.ItemTypeHotel:
		return eq(e.HotelName, c.HotelName) &&
			existing.StartTime == candidate.StartTime &&
			eq(existing.EndTime, candidate.EndTime)
	case domain.ItemTypeActivity:
		return eq(e.ActivityName, c.ActivityName) &&
			eq(e.Location, c.Location) &&
			existing.StartTime == candidate.StartTime
	default:
		return false
	}
}

// eq treats two absent values as equal
func eq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
