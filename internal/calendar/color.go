package calendar

import "strcal/internal/model"

// NeutralGray is the fallback for entities without an assignment or a
// built-in color.
const NeutralGray = "#6B7280"

// ChannelColors are the built-in channel colors.
var ChannelColors = map[string]string{
	string(model.ChannelAirbnb):  "#FF5A5F",
	string(model.ChannelVrbo):    "#245ABC",
	string(model.ChannelDirect):  "#10B981",
	string(model.ChannelBooking): "#003580",
}

// TaskTypeColors are the built-in task type colors.
var TaskTypeColors = map[string]string{
	string(model.TaskCleaning):  "#3B82F6",
	string(model.TaskChef):      "#F59E0B",
	string(model.TaskBartender): "#8B5CF6",
	string(model.TaskMassage):   "#EC4899",
	string(model.TaskHandyman):  "#F97316",
	string(model.TaskConcierge): "#14B8A6",
}

// DefaultColor returns the built-in color for (category, id): the channel and
// task type tables, NeutralGray for everything else.
func DefaultColor(category model.ColorCategory, id string) string {
	var table map[string]string
	switch category {
	case model.CategoryChannel:
		table = ChannelColors
	case model.CategoryTaskType:
		table = TaskTypeColors
	}
	if c, ok := table[id]; ok {
		return c
	}
	return NeutralGray
}

// ResolveColor returns the color of the first assignment matching
// (category, id), or fallback. The id match is case-sensitive.
func ResolveColor(assignments []model.ColorAssignment, category model.ColorCategory, id, fallback string) string {
	for _, a := range assignments {
		if a.Category == category && a.ID == id {
			return a.Color
		}
	}
	return fallback
}

type colorKey struct {
	category model.ColorCategory
	id       string
}

// Resolver is a keyed form of ResolveColor for repeated lookups. It keeps
// first-match-wins semantics and falls back to DefaultColor.
type Resolver struct {
	colors map[colorKey]string
}

// NewResolver indexes assignments.
func NewResolver(assignments []model.ColorAssignment) *Resolver {
	r := &Resolver{colors: make(map[colorKey]string, len(assignments))}
	for _, a := range assignments {
		k := colorKey{a.Category, a.ID}
		if _, ok := r.colors[k]; ok {
			continue
		}
		r.colors[k] = a.Color
	}
	return r
}

// Resolve returns the assigned color or the built-in default.
func (r *Resolver) Resolve(category model.ColorCategory, id string) string {
	if r != nil {
		if c, ok := r.colors[colorKey{category, id}]; ok {
			return c
		}
	}
	return DefaultColor(category, id)
}

// BookingColors is the color annotation of a booking for rendering.
type BookingColors struct {
	Property string `json:"property"`
	Channel  string `json:"channel"`
}

// ForBooking resolves a booking's property and channel colors.
func (r *Resolver) ForBooking(b model.Booking) BookingColors {
	return BookingColors{
		Property: r.Resolve(model.CategoryProperty, b.PropertyID),
		Channel:  r.Resolve(model.CategoryChannel, string(b.Channel)),
	}
}

// ForTask resolves a task's color: the vendor (crew) assignment if one
// exists, otherwise the task type color.
func (r *Resolver) ForTask(t model.VendorTask) string {
	if r != nil {
		if c, ok := r.colors[colorKey{model.CategoryCrew, t.VendorName}]; ok {
			return c
		}
	}
	return r.Resolve(model.CategoryTaskType, string(t.Type))
}
