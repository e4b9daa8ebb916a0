// Package calendar derives renderable calendar structures (day, week, month
// and year grids, occupancy aggregates, colors) from already-fetched bookings
// and vendor tasks.
//
// Every function here is pure: inputs are never mutated, nothing is cached
// between calls and nothing performs I/O. Data anomalies such as a checkout
// that is not after the check-in never produce errors; they yield empty
// results and are reported through Inspect.
//
// Day arithmetic uses the calendar date of each timestamp in its own
// location, ignoring the wall-clock component.
package calendar

import (
	"time"

	"strcal/internal/model"
)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween returns the number of calendar days from a to b (negative if b
// is earlier). It is immune to DST transitions.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// AddDays moves t by n calendar days, keeping the wall clock.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// IsDegenerate reports whether b's checkout is not strictly after its check-in.
func IsDegenerate(b model.Booking) bool {
	return !b.CheckOut.After(b.CheckIn)
}

// NightsBetween returns the billed night count between checkIn and checkOut.
// The checkout day is not a night. Degenerate intervals give 0 or a negative
// number; callers treat that as a data warning.
func NightsBetween(checkIn, checkOut time.Time) int {
	return DaysBetween(checkIn, checkOut)
}

// Nights is NightsBetween for a booking.
func Nights(b model.Booking) int {
	return NightsBetween(b.CheckIn, b.CheckOut)
}

// OccupiesDay reports whether day falls within the booking's stay, from the
// check-in day through the checkout day inclusive. Degenerate bookings occupy
// nothing.
func OccupiesDay(b model.Booking, day time.Time) bool {
	if IsDegenerate(b) {
		return false
	}
	return DaysBetween(b.CheckIn, day) >= 0 && DaysBetween(day, b.CheckOut) >= 0
}

// IsCheckInDay reports whether day is the booking's check-in date.
func IsCheckInDay(b model.Booking, day time.Time) bool {
	return SameDay(b.CheckIn, day)
}

// IsCheckOutDay reports whether day is the booking's checkout date.
func IsCheckOutDay(b model.Booking, day time.Time) bool {
	return SameDay(b.CheckOut, day)
}

// OverlapsRange reports whether the booking occupies any day in [from, to]
// (both taken as calendar days).
func OverlapsRange(b model.Booking, from, to time.Time) bool {
	if IsDegenerate(b) {
		return false
	}
	return DaysBetween(b.CheckIn, to) >= 0 && DaysBetween(from, b.CheckOut) >= 0
}

// InRange returns the bookings that occupy at least one day of [from, to],
// preserving input order.
func InRange(bookings []model.Booking, from, to time.Time) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if OverlapsRange(b, from, to) {
			out = append(out, b)
		}
	}
	return out
}

// Touches is OverlapsRange that also keeps degenerate bookings whose
// check-in day lies in [from, to]. Sources use it so malformed records reach
// Inspect instead of vanishing.
func Touches(b model.Booking, from, to time.Time) bool {
	if IsDegenerate(b) {
		return DaysBetween(from, b.CheckIn) >= 0 && DaysBetween(b.CheckIn, to) >= 0
	}
	return OverlapsRange(b, from, to)
}

// Touching filters bookings with Touches, preserving input order.
func Touching(bookings []model.Booking, from, to time.Time) []model.Booking {
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if Touches(b, from, to) {
			out = append(out, b)
		}
	}
	return out
}

// dayKey identifies a calendar date independent of location.
type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

// occupiedDays returns the set of calendar days within [from, to] touched by
// at least one booking. Overlapping bookings mark a day once.
func occupiedDays(bookings []model.Booking, from, to time.Time) map[dayKey]struct{} {
	set := make(map[dayKey]struct{})
	from = StartOfDay(from)
	for _, b := range bookings {
		if !OverlapsRange(b, from, to) {
			continue
		}
		d := StartOfDay(b.CheckIn)
		if DaysBetween(d, from) > 0 {
			d = from
		}
		for DaysBetween(d, b.CheckOut) >= 0 && DaysBetween(d, to) >= 0 {
			set[keyOf(d)] = struct{}{}
			d = AddDays(d, 1)
		}
	}
	return set
}
