package calendar

import (
	"fmt"

	"strcal/internal/model"
)

// WarningKind classifies a data-quality issue in the input collections.
type WarningKind string

const (
	WarnDegenerateInterval WarningKind = "degenerate_interval"
	WarnNonPositiveTask    WarningKind = "non_positive_duration"
	WarnUnknownBooking     WarningKind = "unknown_booking"
)

// DataWarning describes one anomaly. Warnings never stop rendering.
type DataWarning struct {
	Kind     WarningKind `json:"kind"`
	EntityID string      `json:"entityId"`
	Message  string      `json:"message"`
}

// Inspect reports degenerate booking intervals, tasks with a non-positive
// duration and tasks whose booking reference is not among bookings.
func Inspect(bookings []model.Booking, tasks []model.VendorTask) []DataWarning {
	var out []DataWarning
	ids := make(map[string]struct{}, len(bookings))
	for _, b := range bookings {
		ids[b.ID] = struct{}{}
		if IsDegenerate(b) {
			out = append(out, DataWarning{
				Kind:     WarnDegenerateInterval,
				EntityID: b.ID,
				Message: fmt.Sprintf("checkout %s is not after check-in %s (%d nights)",
					b.CheckOut.Format("2006-01-02T15:04"), b.CheckIn.Format("2006-01-02T15:04"), Nights(b)),
			})
		}
	}
	for _, t := range tasks {
		if t.Duration <= 0 {
			out = append(out, DataWarning{
				Kind:     WarnNonPositiveTask,
				EntityID: t.ID,
				Message:  fmt.Sprintf("duration %d minutes", t.Duration),
			})
		}
		if t.BookingID == "" {
			continue
		}
		if _, ok := ids[t.BookingID]; !ok {
			out = append(out, DataWarning{
				Kind:     WarnUnknownBooking,
				EntityID: t.ID,
				Message:  fmt.Sprintf("references booking %s which is not loaded", t.BookingID),
			})
		}
	}
	return out
}
