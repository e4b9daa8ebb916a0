package calendar

import (
	"sort"
	"time"

	"strcal/internal/model"
)

// TaskSlot is a vendor task positioned on the vertical hour axis.
type TaskSlot struct {
	Task   model.VendorTask `json:"task"`
	Top    float64          `json:"top"`
	Height float64          `json:"height"`
}

// HourSlot is one hour bucket of the day axis.
type HourSlot struct {
	Hour  int        `json:"hour"`
	Start time.Time  `json:"start"`
	Top   float64    `json:"top"`
	Tasks []TaskSlot `json:"tasks"`
}

// DayGrid is the derived structure for a single-day view.
type DayGrid struct {
	Date    time.Time  `json:"date"`
	IsToday bool       `json:"isToday"`
	Hours   []HourSlot `json:"hours"`
	Tasks   []TaskSlot `json:"tasks"`

	// Bookings occupying the day, split by role. A booking that starts and
	// ends the same day is listed in both CheckIns and CheckOuts.
	CheckIns  []model.Booking `json:"checkIns"`
	CheckOuts []model.Booking `json:"checkOuts"`
	Spanning  []model.Booking `json:"spanning"`

	Summary DaySummary `json:"summary"`
}

// PlaceTask computes a task's vertical position: top is the start time in
// hours scaled by pixelsPerHour and height the duration scaled the same way,
// never less than minSlotHeight.
func PlaceTask(t model.VendorTask, pixelsPerHour, minSlotHeight float64) TaskSlot {
	hours := float64(t.ScheduledTime.Hour()) + float64(t.ScheduledTime.Minute())/60
	height := float64(t.Duration) / 60 * pixelsPerHour
	if height < minSlotHeight {
		height = minSlotHeight
	}
	return TaskSlot{
		Task:   t,
		Top:    hours * pixelsPerHour,
		Height: height,
	}
}

// BuildDay derives the day view for day.
func BuildDay(day time.Time, bookings []model.Booking, tasks []model.VendorTask, opts Options) DayGrid {
	opts = opts.normalized()
	start := StartOfDay(day)

	g := DayGrid{
		Date:      start,
		IsToday:   opts.isToday(start),
		Hours:     make([]HourSlot, 24),
		Tasks:     []TaskSlot{},
		CheckIns:  []model.Booking{},
		CheckOuts: []model.Booking{},
		Spanning:  []model.Booking{},
	}
	for h := range g.Hours {
		g.Hours[h] = HourSlot{
			Hour:  h,
			Start: time.Date(start.Year(), start.Month(), start.Day(), h, 0, 0, 0, start.Location()),
			Top:   float64(h) * opts.PixelsPerHour,
			Tasks: []TaskSlot{},
		}
	}

	for _, t := range TasksOnDay(tasks, start) {
		slot := PlaceTask(t, opts.PixelsPerHour, opts.MinSlotHeight)
		g.Tasks = append(g.Tasks, slot)
		h := t.ScheduledTime.Hour()
		g.Hours[h].Tasks = append(g.Hours[h].Tasks, slot)
	}

	for _, b := range bookings {
		if !OccupiesDay(b, start) {
			continue
		}
		in, out := IsCheckInDay(b, start), IsCheckOutDay(b, start)
		if in {
			g.CheckIns = append(g.CheckIns, b)
		}
		if out {
			g.CheckOuts = append(g.CheckOuts, b)
		}
		if !in && !out {
			g.Spanning = append(g.Spanning, b)
		}
	}
	sort.SliceStable(g.CheckIns, func(i, j int) bool { return g.CheckIns[i].CheckIn.Before(g.CheckIns[j].CheckIn) })
	sort.SliceStable(g.CheckOuts, func(i, j int) bool { return g.CheckOuts[i].CheckOut.Before(g.CheckOuts[j].CheckOut) })
	sortByProperty(g.Spanning)

	g.Summary = DayCounts(bookings, start)
	return g
}

// TasksOnDay returns the tasks scheduled on day's calendar date, ordered by
// start time.
func TasksOnDay(tasks []model.VendorTask, day time.Time) []model.VendorTask {
	out := make([]model.VendorTask, 0)
	for _, t := range tasks {
		if SameDay(t.ScheduledTime, day) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

func sortByProperty(bookings []model.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if a.PropertyName != b.PropertyName {
			return a.PropertyName < b.PropertyName
		}
		return a.PropertyID < b.PropertyID
	})
}
