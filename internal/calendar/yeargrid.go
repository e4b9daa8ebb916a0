package calendar

import (
	"time"

	"strcal/internal/model"
)

// MiniCell is a day of a compact month: no per-booking breakdown.
type MiniCell struct {
	Date           time.Time `json:"date"`
	IsCurrentMonth bool      `json:"isCurrentMonth"`
	IsToday        bool      `json:"isToday"`
	HasBooking     bool      `json:"hasBooking"`
}

// MiniMonth is one month of the year view.
type MiniMonth struct {
	Month     time.Time    `json:"month"`
	Weeks     [][]MiniCell `json:"weeks"`
	Occupancy Occupancy    `json:"occupancy"`
}

// YearGrid is the derived structure for a year view.
type YearGrid struct {
	Year      int         `json:"year"`
	Months    []MiniMonth `json:"months"`
	Occupancy Occupancy   `json:"occupancy"`
}

// YearGridWindow spans every cell BuildYear draws: from the first grid day of
// January's mini month to the last grid day of December's.
func YearGridWindow(ref time.Time, weekStart time.Weekday) ViewWindow {
	jan := WindowFor(ViewMonth, time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location()), weekStart)
	dec := WindowFor(ViewMonth, time.Date(ref.Year(), time.December, 1, 0, 0, 0, 0, ref.Location()), weekStart)
	return ViewWindow{Mode: ViewYear, Start: jan.Start, End: dec.End}
}

// BuildYear derives the twelve compact months of ref's year.
func BuildYear(ref time.Time, bookings []model.Booking, opts Options) YearGrid {
	opts = opts.normalized()
	g := YearGrid{
		Year:      ref.Year(),
		Months:    make([]MiniMonth, 0, 12),
		Occupancy: YearOccupancy(bookings, ref),
	}

	for m := time.January; m <= time.December; m++ {
		first := time.Date(ref.Year(), m, 1, 0, 0, 0, 0, ref.Location())
		w := WindowFor(ViewMonth, first, opts.WeekStart)
		occupied := occupiedDays(bookings, w.Start, w.End)

		mm := MiniMonth{
			Month:     first,
			Occupancy: MonthOccupancyStats(bookings, first),
		}
		var week []MiniCell
		for _, d := range w.Days() {
			_, has := occupied[keyOf(d)]
			week = append(week, MiniCell{
				Date:           d,
				IsCurrentMonth: d.Month() == m,
				IsToday:        opts.isToday(d),
				HasBooking:     has,
			})
			if len(week) == daysPerWeek {
				mm.Weeks = append(mm.Weeks, week)
				week = nil
			}
		}
		g.Months = append(g.Months, mm)
	}
	return g
}
