// Package source merges bookings and vendor tasks from every configured
// origin (backend API, channel feeds, owner calendar, database, recurring
// schedules) into one collection for the calendar core.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "strcal/internal/log"
	"strcal/internal/model"
)

// BookingSource returns bookings overlapping [from, to].
type BookingSource interface {
	Name() string
	Bookings(ctx context.Context, from, to time.Time) ([]model.Booking, error)
}

// TaskSource returns vendor tasks scheduled within [from, to].
type TaskSource interface {
	Name() string
	Tasks(ctx context.Context, from, to time.Time) ([]model.VendorTask, error)
}

// Collection is the merged view of all sources for one window.
type Collection struct {
	From      time.Time
	To        time.Time
	Bookings  []model.Booking
	Tasks     []model.VendorTask
	Errors    []error
	FetchedAt time.Time
}

// Collector fans out to all sources concurrently. Sources registered first
// win when two report the same id. Sources may be added while collections
// are running.
type Collector struct {
	mu             sync.RWMutex
	bookingSources []BookingSource
	taskSources    []TaskSource
	limit          int
}

func NewCollector() *Collector {
	return &Collector{limit: 4}
}

func (c *Collector) AddBookings(s BookingSource) *Collector {
	c.mu.Lock()
	c.bookingSources = append(c.bookingSources, s)
	c.mu.Unlock()
	return c
}

func (c *Collector) AddTasks(s TaskSource) *Collector {
	c.mu.Lock()
	c.taskSources = append(c.taskSources, s)
	c.mu.Unlock()
	return c
}

// ReplaceBookings swaps the booking source with the same name in place,
// keeping its precedence, or appends s when none is registered.
func (c *Collector) ReplaceBookings(s BookingSource) *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.bookingSources {
		if existing.Name() == s.Name() {
			c.bookingSources[i] = s
			return c
		}
	}
	c.bookingSources = append(c.bookingSources, s)
	return c
}

// Sources lists registered source names, bookings first.
func (c *Collector) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.bookingSources)+len(c.taskSources))
	for _, s := range c.bookingSources {
		names = append(names, s.Name())
	}
	for _, s := range c.taskSources {
		names = append(names, s.Name())
	}
	return names
}

// Collect queries every source. A failing source is logged and recorded in
// Collection.Errors; it never prevents the others from contributing.
func (c *Collector) Collect(ctx context.Context, from, to time.Time) Collection {
	c.mu.RLock()
	bookingSources := append([]BookingSource(nil), c.bookingSources...)
	taskSources := append([]TaskSource(nil), c.taskSources...)
	c.mu.RUnlock()

	bookingResults := make([][]model.Booking, len(bookingSources))
	taskResults := make([][]model.VendorTask, len(taskSources))
	bookingErrs := make([]error, len(bookingSources))
	taskErrs := make([]error, len(taskSources))

	var g errgroup.Group
	g.SetLimit(c.limit)

	for i, s := range bookingSources {
		i, s := i, s
		g.Go(func() error {
			started := time.Now()
			res, err := s.Bookings(ctx, from, to)
			if err != nil {
				bookingErrs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				appLog.Error("booking source failed", err, "source", s.Name())
				return nil
			}
			bookingResults[i] = res
			appLog.Debug("booking source done", "source", s.Name(), "count", len(res), "took", time.Since(started))
			return nil
		})
	}
	for i, s := range taskSources {
		i, s := i, s
		g.Go(func() error {
			res, err := s.Tasks(ctx, from, to)
			if err != nil {
				taskErrs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				appLog.Error("task source failed", err, "source", s.Name())
				return nil
			}
			taskResults[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := Collection{From: from, To: to, FetchedAt: time.Now()}
	out.Bookings = mergeBookings(bookingResults)
	out.Tasks = mergeTasks(taskResults)
	for _, err := range append(bookingErrs, taskErrs...) {
		if err != nil {
			out.Errors = append(out.Errors, err)
		}
	}
	return out
}

func mergeBookings(groups [][]model.Booking) []model.Booking {
	seen := make(map[string]bool)
	out := make([]model.Booking, 0)
	for _, group := range groups {
		for _, b := range group {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CheckIn.Equal(out[j].CheckIn) {
			return out[i].CheckIn.Before(out[j].CheckIn)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func mergeTasks(groups [][]model.VendorTask) []model.VendorTask {
	seen := make(map[string]bool)
	out := make([]model.VendorTask, 0)
	for _, group := range groups {
		for _, t := range group {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
