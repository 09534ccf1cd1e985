package travel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"travel_server/core/domain"
	"travel_server/core/port/out"
)

const digestTimeLayout = "Mon Jan 2 2006 15:04"

// Conflict is a pair of items whose time ranges overlap
type Conflict struct {
	A domain.TravelItem `json:"a"`
	B domain.TravelItem `json:"b"`
}

// TextDigest renders itineraries locally without an LLM
type TextDigest struct {
	loc *time.Location
}

var _ out.SummaryAgent = (*TextDigest)(nil)

func NewTextDigest(loc *time.Location) *TextDigest {
	if loc == nil {
		loc = time.Local
	}
	return &TextDigest{loc: loc}
}

// Summarize groups items by type in chronological order and lists
// scheduling conflicts last
func (d *TextDigest) Summarize(_ context.Context, userID string, items []domain.TravelItem) (string, error) {
	if len(items) == 0 {
		return "No upcoming travel.", nil
	}

	sorted := domain.CloneItems(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := sorted[i].Start(d.loc)
		b, _ := sorted[j].Start(d.loc)
		return a.Before(b)
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Upcoming travel for %s\n", userID)

	sections := []struct {
		title string
		typ   domain.TravelItemType
	}{
		{"Flights", domain.ItemTypeFlight},
		{"Hotels", domain.ItemTypeHotel},
		{"Activities", domain.ItemTypeActivity},
	}
	for _, sec := range sections {
		var lines []string
		for i := range sorted {
			if sorted[i].Type == sec.typ {
				lines = append(lines, d.line(&sorted[i]))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s\n", sec.title)
		for _, l := range lines {
			fmt.Fprintf(&sb, "  - %s\n", l)
		}
	}

	if conflicts := FindConflicts(sorted, d.loc); len(conflicts) > 0 {
		sb.WriteString("\nScheduling conflicts\n")
		for _, c := range conflicts {
			fmt.Fprintf(&sb, "  ! %s overlaps %s\n", c.A.Description, c.B.Description)
		}
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

func (d *TextDigest) line(item *domain.TravelItem) string {
	parts := []string{d.when(item)}

	det := item.Details
	switch item.Type {
	case domain.ItemTypeFlight:
		route := strings.TrimSpace(domain.Deref(det.FlightNumber) + " " + joinNonEmpty(" -> ", domain.Deref(det.DepartureAirport), domain.Deref(det.ArrivalAirport)))
		if route != "" {
			parts = append(parts, route)
		}
		if det.Airline != nil {
			parts = append(parts, *det.Airline)
		}
	case domain.ItemTypeHotel:
		parts = append(parts, firstNonEmpty(domain.Deref(det.HotelName), item.Description))
		if det.RoomType != nil {
			parts = append(parts, *det.RoomType)
		}
	case domain.ItemTypeActivity:
		parts = append(parts, firstNonEmpty(domain.Deref(det.ActivityName), item.Description))
		if det.Location != nil {
			parts = append(parts, "at "+*det.Location)
		}
	}
	if item.Type == domain.ItemTypeFlight && len(parts) == 1 {
		parts = append(parts, item.Description)
	}

	var extras []string
	if c := det.Confirmation(); c != "" {
		extras = append(extras, "conf "+c)
	}
	if det.PricePaid != nil {
		extras = append(extras, fmt.Sprintf("$%.2f", *det.PricePaid))
	}
	if det.Status() == domain.BookingPending {
		extras = append(extras, "pending")
	}
	if len(extras) > 0 {
		parts = append(parts, "("+strings.Join(extras, ", ")+")")
	}
	return strings.Join(parts, "  ")
}

func (d *TextDigest) when(item *domain.TravelItem) string {
	start, ok := item.Start(d.loc)
	if !ok {
		return item.StartTime
	}
	s := start.Format(digestTimeLayout)
	if end, ok := item.End(d.loc); ok {
		s += " to " + end.Format(digestTimeLayout)
	}
	return s
}

// FindConflicts reports overlapping pairs. A hotel stay only conflicts with
// another hotel stay; activities and flights during a stay are expected.
// An item without an end occupies its start instant.
func FindConflicts(items []domain.TravelItem, loc *time.Location) []Conflict {
	type span struct {
		item       domain.TravelItem
		start, end time.Time
	}
	spans := make([]span, 0, len(items))
	for _, item := range items {
		start, ok := item.Start(loc)
		if !ok {
			continue
		}
		end, ok := item.End(loc)
		if !ok || end.Before(start) {
			end = start
		}
		spans = append(spans, span{item: item, start: start, end: end})
	}

	var conflicts []Conflict
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if (a.item.Type == domain.ItemTypeHotel) != (b.item.Type == domain.ItemTypeHotel) {
				continue
			}
			if overlaps(a.start, a.end, b.start, b.end) {
				conflicts = append(conflicts, Conflict{A: a.item, B: b.item})
			}
		}
	}
	return conflicts
}

// overlaps treats ranges as half-open and instants as points
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	aPoint, bPoint := aStart.Equal(aEnd), bStart.Equal(bEnd)
	switch {
	case aPoint && bPoint:
		return aStart.Equal(bStart)
	case aPoint:
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	case bPoint:
		return !bStart.Before(aStart) && bStart.Before(aEnd)
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func joinNonEmpty(sep string, vals ...string) string {
	var kept []string
	for _, v := range vals {
		if v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, sep)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
