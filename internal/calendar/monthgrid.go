package calendar

import (
	"sort"
	"time"

	"strcal/internal/model"
)

// CellBooking is a booking as drawn in one month cell. IsStart / IsEnd mark
// the check-in and checkout days for rounded corners.
type CellBooking struct {
	Booking model.Booking `json:"booking"`
	IsStart bool          `json:"isStart"`
	IsEnd   bool          `json:"isEnd"`
}

// MonthCell is one day of the month grid.
type MonthCell struct {
	Date           time.Time     `json:"date"`
	IsCurrentMonth bool          `json:"isCurrentMonth"`
	IsToday        bool          `json:"isToday"`
	Bookings       []CellBooking `json:"bookings"`
	Total          int           `json:"total"`
	Overflow       int           `json:"overflow"`
	TaskCount      int           `json:"taskCount"`
}

// MonthGrid is the derived structure for a month view: whole weeks from the
// week start on/before the 1st to the week end on/after the last day.
type MonthGrid struct {
	Month  time.Time     `json:"month"`
	Window ViewWindow    `json:"window"`
	Weeks  [][]MonthCell `json:"weeks"`
}

// Cells returns the grid cells in row-major order.
func (g MonthGrid) Cells() []MonthCell {
	out := make([]MonthCell, 0, len(g.Weeks)*daysPerWeek)
	for _, week := range g.Weeks {
		out = append(out, week...)
	}
	return out
}

// BuildMonth derives the month view for ref's month.
func BuildMonth(ref time.Time, bookings []model.Booking, tasks []model.VendorTask, opts Options) MonthGrid {
	opts = opts.normalized()
	w := WindowFor(ViewMonth, ref, opts.WeekStart)
	first := FirstOfMonth(ref)

	// Only bookings touching the padded window can land in a cell.
	visible := InRange(bookings, w.Start, w.End)
	sort.SliceStable(visible, func(i, j int) bool {
		if !visible[i].CheckIn.Equal(visible[j].CheckIn) {
			return visible[i].CheckIn.Before(visible[j].CheckIn)
		}
		return visible[i].ID < visible[j].ID
	})

	taskCounts := make(map[dayKey]int)
	for _, t := range tasks {
		if w.Contains(t.ScheduledTime) {
			taskCounts[keyOf(t.ScheduledTime)]++
		}
	}

	g := MonthGrid{Month: first, Window: w}
	var week []MonthCell
	for _, d := range w.Days() {
		cell := MonthCell{
			Date:           d,
			IsCurrentMonth: d.Month() == first.Month() && d.Year() == first.Year(),
			IsToday:        opts.isToday(d),
			Bookings:       []CellBooking{},
			TaskCount:      taskCounts[keyOf(d)],
		}
		for _, b := range visible {
			if !OccupiesDay(b, d) {
				continue
			}
			cell.Total++
			if len(cell.Bookings) < opts.MaxVisiblePerCell {
				cell.Bookings = append(cell.Bookings, CellBooking{
					Booking: b,
					IsStart: IsCheckInDay(b, d),
					IsEnd:   IsCheckOutDay(b, d),
				})
			}
		}
		cell.Overflow = cell.Total - len(cell.Bookings)

		week = append(week, cell)
		if len(week) == daysPerWeek {
			g.Weeks = append(g.Weeks, week)
			week = nil
		}
	}
	return g
}
