// Package schedule expands recurring vendor tasks (weekly cleanings, a chef
// every Saturday) described by RRULEs into concrete VendorTask occurrences.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"strcal/internal/config"
	appLog "strcal/internal/log"
	"strcal/internal/model"
)

const defaultMaxOccurrences = 1000

// Recurring is one parsed recurring task definition.
type Recurring struct {
	ID         string
	PropertyID string
	Type       model.TaskType
	VendorName string
	Duration   int
	Notes      string

	rule   *rrule.RRule
	loc    *time.Location
	except []time.Time
}

// Parse builds a Recurring from its config entry. Start and Except are local
// wall-clock literals interpreted in loc.
func Parse(c config.RecurringTaskConfig, loc *time.Location) (Recurring, error) {
	start, err := model.ParseLocal(c.Start, loc)
	if err != nil {
		return Recurring{}, fmt.Errorf("schedule: %s: start: %w", c.ID, err)
	}
	r, err := rrule.StrToRRule(c.RRule)
	if err != nil {
		return Recurring{}, fmt.Errorf("schedule: %s: rrule: %w", c.ID, err)
	}
	r.DTStart(start)

	rec := Recurring{
		ID:         c.ID,
		PropertyID: c.PropertyID,
		Type:       model.TaskType(c.Type),
		VendorName: c.VendorName,
		Duration:   c.DurationMinutes,
		Notes:      c.Notes,
		rule:       r,
		loc:        start.Location(),
	}
	for _, ex := range c.Except {
		t, err := model.ParseLocal(ex, loc)
		if err != nil {
			return Recurring{}, fmt.Errorf("schedule: %s: except %q: %w", c.ID, ex, err)
		}
		rec.except = append(rec.except, t)
	}
	return rec, nil
}

// Occurrences returns the tasks starting within [from, to], capped at max
// (defaultMaxOccurrences when max <= 0). The bool reports truncation.
func (r Recurring) Occurrences(from, to time.Time, max int) ([]model.VendorTask, bool) {
	if max <= 0 {
		max = defaultMaxOccurrences
	}
	var set rrule.Set
	set.RRule(r.rule)
	loc := r.loc
	for _, ex := range r.except {
		set.ExDate(ex.In(loc))
	}

	starts := set.Between(from.In(loc), to.In(loc), true)
	truncated := false
	if len(starts) > max {
		starts = starts[:max]
		truncated = true
	}

	out := make([]model.VendorTask, 0, len(starts))
	for _, s := range starts {
		out = append(out, model.VendorTask{
			ID:            r.ID + "@" + s.Format(time.RFC3339),
			PropertyID:    r.PropertyID,
			Type:          r.Type,
			VendorName:    r.VendorName,
			ScheduledTime: s,
			Duration:      r.Duration,
			Status:        statusAt(s, r.Duration, time.Now()),
			Notes:         r.Notes,
		})
	}
	return out, truncated
}

// statusAt derives a generated task's status from the clock, since nothing
// records progress for schedule-only tasks.
func statusAt(start time.Time, minutes int, now time.Time) model.TaskStatus {
	end := start.Add(time.Duration(minutes) * time.Minute)
	switch {
	case now.Before(start):
		return model.TaskScheduled
	case now.Before(end):
		return model.TaskInProgress
	default:
		return model.TaskCompleted
	}
}

// Source serves recurring tasks as a task source.
type Source struct {
	items []Recurring
	max   int
}

// NewSource parses all definitions. Invalid entries are logged and skipped.
func NewSource(defs []config.RecurringTaskConfig, loc *time.Location) *Source {
	s := &Source{max: defaultMaxOccurrences}
	for _, d := range defs {
		rec, err := Parse(d, loc)
		if err != nil {
			appLog.Error("recurring task skipped", err, "id", d.ID)
			continue
		}
		s.items = append(s.items, rec)
	}
	return s
}

func (s *Source) Name() string { return "schedule" }

func (s *Source) Len() int { return len(s.items) }

func (s *Source) Tasks(ctx context.Context, from, to time.Time) ([]model.VendorTask, error) {
	if to.Before(from) {
		return nil, errors.New("schedule: window end before start")
	}
	out := make([]model.VendorTask, 0)
	for _, r := range s.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tasks, truncated := r.Occurrences(from, to, s.max)
		if truncated {
			appLog.Warn("recurring task occurrences truncated", "id", r.ID, "cap", s.max)
		}
		out = append(out, tasks...)
	}
	return out, nil
}
