package calendar

import (
	"fmt"
	"strings"
	"time"
)

// ViewMode selects which grid a caller renders.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
	ViewYear  ViewMode = "year"
)

// ParseViewMode accepts day, week, month or year (case-insensitive).
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ViewDay, ViewWeek, ViewMonth, ViewYear:
		return m, nil
	default:
		return "", fmt.Errorf("calendar: unknown view mode %q", s)
	}
}

// ViewWindow is the inclusive [Start, End] time range a view covers. Start is
// midnight of the first day and End the last instant of the last day.
type ViewWindow struct {
	Mode  ViewMode  `json:"mode"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns midnight of every calendar day in the window.
func (w ViewWindow) Days() []time.Time {
	n := DaysBetween(w.Start, w.End) + 1
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, AddDays(w.Start, i))
	}
	return days
}

// Contains reports whether t's calendar day lies inside the window.
func (w ViewWindow) Contains(t time.Time) bool {
	return DaysBetween(w.Start, t) >= 0 && DaysBetween(t, w.End) >= 0
}

// WeekStartOn returns midnight of the weekStart weekday on or before t.
func WeekStartOn(t time.Time, weekStart time.Weekday) time.Time {
	d := StartOfDay(t)
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return AddDays(d, -offset)
}

// FirstOfMonth returns midnight of the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// WindowFor computes the view window around ref:
//
//   - day:   ref's calendar day
//   - week:  the 7 days starting on weekStart on/before ref
//   - month: ref's month padded out to whole weeks
//   - year:  January 1 through December 31 of ref's year
func WindowFor(mode ViewMode, ref time.Time, weekStart time.Weekday) ViewWindow {
	w := ViewWindow{Mode: mode}
	switch mode {
	case ViewWeek:
		w.Start = WeekStartOn(ref, weekStart)
		w.End = EndOfDay(AddDays(w.Start, 6))
	case ViewMonth:
		first := FirstOfMonth(ref)
		last := AddDays(first, DaysInMonth(ref)-1)
		w.Start = WeekStartOn(first, weekStart)
		w.End = EndOfDay(AddDays(WeekStartOn(last, weekStart), 6))
	case ViewYear:
		w.Start = time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
		w.End = EndOfDay(time.Date(ref.Year(), time.December, 31, 0, 0, 0, 0, ref.Location()))
	default:
		w.Mode = ViewDay
		w.Start = StartOfDay(ref)
		w.End = EndOfDay(ref)
	}
	return w
}
