// Package export writes itineraries to spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"travel_server/core/domain"
)

type column struct {
	header string
	width  float64
	value  func(item *domain.TravelItem) any
}

func str(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

var commonLead = []column{
	{"Start", 20, func(i *domain.TravelItem) any { return i.StartTime }},
	{"End", 20, func(i *domain.TravelItem) any { return str(i.EndTime) }},
	{"Description", 36, func(i *domain.TravelItem) any { return i.Description }},
}

var commonTail = []column{
	{"Confirmation", 16, func(i *domain.TravelItem) any { return i.Details.Confirmation() }},
	{"Status", 12, func(i *domain.TravelItem) any { return string(i.Details.Status()) }},
	{"Price", 12, func(i *domain.TravelItem) any {
		if i.Details.PricePaid == nil {
			return ""
		}
		return *i.Details.PricePaid
	}},
	{"Booked", 14, func(i *domain.TravelItem) any { return str(i.Details.BookingDate) }},
}

// sheets lists the per-type columns in output order
var sheets = []struct {
	name   string
	typ    domain.TravelItemType
	fields []column
}{
	{"Flights", domain.ItemTypeFlight, []column{
		{"Flight", 10, func(i *domain.TravelItem) any { return str(i.Details.FlightNumber) }},
		{"Airline", 18, func(i *domain.TravelItem) any { return str(i.Details.Airline) }},
		{"From", 8, func(i *domain.TravelItem) any { return str(i.Details.DepartureAirport) }},
		{"To", 8, func(i *domain.TravelItem) any { return str(i.Details.ArrivalAirport) }},
	}},
	{"Hotels", domain.ItemTypeHotel, []column{
		{"Hotel", 28, func(i *domain.TravelItem) any { return str(i.Details.HotelName) }},
		{"Room", 16, func(i *domain.TravelItem) any { return str(i.Details.RoomType) }},
		{"Check-in", 12, func(i *domain.TravelItem) any { return str(i.Details.CheckInTime) }},
		{"Check-out", 12, func(i *domain.TravelItem) any { return str(i.Details.CheckOutTime) }},
	}},
	{"Activities", domain.ItemTypeActivity, []column{
		{"Activity", 28, func(i *domain.TravelItem) any { return str(i.Details.ActivityName) }},
		{"Location", 24, func(i *domain.TravelItem) any { return str(i.Details.Location) }},
		{"Ticket", 14, func(i *domain.TravelItem) any { return str(i.Details.TicketType) }},
	}},
}

// WriteXLSX writes one sheet per item type, in the order items are given.
// Sheets are created even when empty so the layout is stable.
func WriteXLSX(items []domain.TravelItem, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	cancelledStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Strike: true, Color: "#808080"},
	})
	if err != nil {
		return err
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return err
		}

		cols := append(append(append([]column{}, commonLead...), sh.fields...), commonTail...)
		for c, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			if err := f.SetCellValue(sh.name, cell, col.header); err != nil {
				return err
			}
			name, _ := excelize.ColumnNumberToName(c + 1)
			if err := f.SetColWidth(sh.name, name, name, col.width); err != nil {
				return err
			}
		}
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		if err := f.SetCellStyle(sh.name, "A1", last, headerStyle); err != nil {
			return err
		}

		row := 2
		for k := range items {
			item := &items[k]
			if item.Type != sh.typ {
				continue
			}
			for c, col := range cols {
				cell, _ := excelize.CoordinatesToCellName(c+1, row)
				if err := f.SetCellValue(sh.name, cell, col.value(item)); err != nil {
					return err
				}
			}
			if item.IsCancelled() {
				first, _ := excelize.CoordinatesToCellName(1, row)
				end, _ := excelize.CoordinatesToCellName(len(cols), row)
				if err := f.SetCellStyle(sh.name, first, end, cancelledStyle); err != nil {
					return err
				}
			}
			row++
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
