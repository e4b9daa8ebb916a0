package calendar

import (
	"sort"
	"time"

	"strcal/internal/model"
)

const daysPerWeek = 7

// WeekSpan places one booking inside a week row.
//
// StartIndex is the first column (0-6) the stay touches, clamped to 0 when it
// began before the week. EndIndexExclusive is one past the last column
// touched, clamped to 7. StartsInWindow / EndsInWindow tell the renderer
// whether the real check-in / checkout edge is visible, i.e. whether to round
// that corner and print the time label.
type WeekSpan struct {
	Booking           model.Booking `json:"booking"`
	StartIndex        int           `json:"startIndex"`
	EndIndexExclusive int           `json:"endIndexExclusive"`
	Span              int           `json:"span"`
	StartsInWindow    bool          `json:"startsInWindow"`
	EndsInWindow      bool          `json:"endsInWindow"`
}

// PropertyRow is one visual row of the week view.
type PropertyRow struct {
	PropertyID   string     `json:"propertyId"`
	PropertyName string     `json:"propertyName"`
	Spans        []WeekSpan `json:"spans"`
}

// WeekDay is a column header of the week view.
type WeekDay struct {
	Date    time.Time          `json:"date"`
	IsToday bool               `json:"isToday"`
	Tasks   []model.VendorTask `json:"tasks"`
	Summary DaySummary         `json:"summary"`
}

// WeekGrid is the derived structure for a week view.
type WeekGrid struct {
	Window ViewWindow    `json:"window"`
	Days   []WeekDay     `json:"days"`
	Rows   []PropertyRow `json:"rows"`
}

// SpanInWeek computes b's placement relative to weekStart. ok is false when
// the booking does not touch any of the seven days (or is degenerate).
func SpanInWeek(b model.Booking, weekStart time.Time) (span WeekSpan, ok bool) {
	if IsDegenerate(b) {
		return WeekSpan{}, false
	}
	in := DaysBetween(weekStart, b.CheckIn)
	out := DaysBetween(weekStart, b.CheckOut)
	if in >= daysPerWeek || out < 0 {
		return WeekSpan{}, false
	}

	start := max(in, 0)
	end := min(out, daysPerWeek-1) + 1
	return WeekSpan{
		Booking:           b,
		StartIndex:        start,
		EndIndexExclusive: end,
		Span:              end - start,
		StartsInWindow:    in >= 0 && in < daysPerWeek,
		EndsInWindow:      out >= 0 && out < daysPerWeek,
	}, true
}

// BuildWeek derives the week view containing ref. Properties appear as rows
// only if at least one of their bookings touches the week; rows are ordered
// by property name.
func BuildWeek(ref time.Time, bookings []model.Booking, tasks []model.VendorTask, opts Options) WeekGrid {
	opts = opts.normalized()
	w := WindowFor(ViewWeek, ref, opts.WeekStart)

	g := WeekGrid{
		Window: w,
		Days:   make([]WeekDay, 0, daysPerWeek),
		Rows:   []PropertyRow{},
	}
	for _, d := range w.Days() {
		g.Days = append(g.Days, WeekDay{
			Date:    d,
			IsToday: opts.isToday(d),
			Tasks:   TasksOnDay(tasks, d),
			Summary: DayCounts(bookings, d),
		})
	}

	rowIndex := make(map[string]int)
	for _, b := range bookings {
		span, ok := SpanInWeek(b, w.Start)
		if !ok {
			continue
		}
		i, seen := rowIndex[b.PropertyID]
		if !seen {
			i = len(g.Rows)
			rowIndex[b.PropertyID] = i
			g.Rows = append(g.Rows, PropertyRow{
				PropertyID:   b.PropertyID,
				PropertyName: b.PropertyName,
			})
		}
		g.Rows[i].Spans = append(g.Rows[i].Spans, span)
	}

	sort.SliceStable(g.Rows, func(i, j int) bool {
		if g.Rows[i].PropertyName != g.Rows[j].PropertyName {
			return g.Rows[i].PropertyName < g.Rows[j].PropertyName
		}
		return g.Rows[i].PropertyID < g.Rows[j].PropertyID
	})
	for _, row := range g.Rows {
		sort.SliceStable(row.Spans, func(i, j int) bool {
			if row.Spans[i].StartIndex != row.Spans[j].StartIndex {
				return row.Spans[i].StartIndex < row.Spans[j].StartIndex
			}
			return row.Spans[i].Booking.CheckIn.Before(row.Spans[j].Booking.CheckIn)
		})
	}
	return g
}
