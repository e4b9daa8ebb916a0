package calendar

import (
	"math"
	"sort"
	"time"

	"strcal/internal/model"
)

// DaySummary backs the daily summary headers.
type DaySummary struct {
	CheckIns      int `json:"checkIns"`
	CheckOuts     int `json:"checkOuts"`
	OccupiedCount int `json:"occupiedCount"`
}

// DayCounts counts check-ins, checkouts and occupying bookings on day. A stay
// starting and ending the same day counts as both a check-in and a checkout.
func DayCounts(bookings []model.Booking, day time.Time) DaySummary {
	var s DaySummary
	for _, b := range bookings {
		if !OccupiesDay(b, day) {
			continue
		}
		s.OccupiedCount++
		if IsCheckInDay(b, day) {
			s.CheckIns++
		}
		if IsCheckOutDay(b, day) {
			s.CheckOuts++
		}
	}
	return s
}

// Occupancy is a binary-per-day occupancy measure over a period.
type Occupancy struct {
	OccupiedDays int `json:"occupiedDays"`
	TotalDays    int `json:"totalDays"`
	Percent      int `json:"percent"`
}

func newOccupancy(occupied, total int) Occupancy {
	o := Occupancy{OccupiedDays: occupied, TotalDays: total}
	if total > 0 {
		o.Percent = int(math.Round(float64(occupied) / float64(total) * 100))
	}
	return o
}

// MonthOccupancyStats marks each day of month's month occupied when at least
// one booking covers it. Overlapping bookings count a day once.
func MonthOccupancyStats(bookings []model.Booking, month time.Time) Occupancy {
	first := FirstOfMonth(month)
	total := DaysInMonth(first)
	last := AddDays(first, total-1)
	return newOccupancy(len(occupiedDays(bookings, first, last)), total)
}

// MonthOccupancy returns the month's occupancy percentage, 0-100.
func MonthOccupancy(bookings []model.Booking, month time.Time) int {
	return MonthOccupancyStats(bookings, month).Percent
}

// PropertyOccupancy is a month occupancy figure for one property.
type PropertyOccupancy struct {
	PropertyID   string `json:"propertyId"`
	PropertyName string `json:"propertyName"`
	Occupancy
}

// PropertyOccupancies computes MonthOccupancyStats per property, for every
// property with at least one booking in the input, ordered by name.
func PropertyOccupancies(bookings []model.Booking, month time.Time) []PropertyOccupancy {
	byProperty := make(map[string][]model.Booking)
	names := make(map[string]string)
	for _, b := range bookings {
		byProperty[b.PropertyID] = append(byProperty[b.PropertyID], b)
		if _, ok := names[b.PropertyID]; !ok {
			names[b.PropertyID] = b.PropertyName
		}
	}

	out := make([]PropertyOccupancy, 0, len(byProperty))
	for id, list := range byProperty {
		out = append(out, PropertyOccupancy{
			PropertyID:   id,
			PropertyName: names[id],
			Occupancy:    MonthOccupancyStats(list, month),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PropertyName != out[j].PropertyName {
			return out[i].PropertyName < out[j].PropertyName
		}
		return out[i].PropertyID < out[j].PropertyID
	})
	return out
}

// YearOccupancy is the occupancy over every day of ref's year.
func YearOccupancy(bookings []model.Booking, ref time.Time) Occupancy {
	w := WindowFor(ViewYear, ref, time.Sunday)
	total := DaysBetween(w.Start, w.End) + 1
	return newOccupancy(len(occupiedDays(bookings, w.Start, w.End)), total)
}
