package calendar

import "time"

const (
	DefaultPixelsPerHour     = 60
	DefaultMinSlotHeight     = 20
	DefaultMaxVisiblePerCell = 3
)

// Options tunes grid construction. The zero value is usable: weeks start on
// Sunday, there is no minimum task height and cells show three bookings.
type Options struct {
	// WeekStart is the first column of week, month and year grids.
	WeekStart time.Weekday

	// PixelsPerHour scales task positions in the day grid.
	PixelsPerHour float64

	// MinSlotHeight is the floor applied to task heights so very short tasks
	// remain clickable. Same unit as PixelsPerHour.
	MinSlotHeight float64

	// MaxVisiblePerCell caps the bookings listed per month cell; the rest are
	// reported as overflow.
	MaxVisiblePerCell int

	// Today, if non-zero, marks the matching cell.
	Today time.Time
}

// DefaultOptions returns the options used by the web UI.
func DefaultOptions() Options {
	return Options{
		WeekStart:         time.Sunday,
		PixelsPerHour:     DefaultPixelsPerHour,
		MinSlotHeight:     DefaultMinSlotHeight,
		MaxVisiblePerCell: DefaultMaxVisiblePerCell,
	}
}

func (o Options) normalized() Options {
	if o.PixelsPerHour <= 0 {
		o.PixelsPerHour = DefaultPixelsPerHour
	}
	if o.MinSlotHeight < 0 {
		o.MinSlotHeight = 0
	}
	if o.MaxVisiblePerCell <= 0 {
		o.MaxVisiblePerCell = DefaultMaxVisiblePerCell
	}
	if o.WeekStart < time.Sunday || o.WeekStart > time.Saturday {
		o.WeekStart = time.Sunday
	}
	return o
}

func (o Options) isToday(day time.Time) bool {
	return !o.Today.IsZero() && SameDay(o.Today, day)
}
