package backend

import (
	"context"
	"time"

	appLog "strcal/internal/log"
	"strcal/internal/model"
)

// Source adapts the REST client to the booking and task source interfaces.
// Records that fail to convert are logged and dropped.
type Source struct {
	client *Client
	loc    *time.Location
}

func NewSource(client *Client, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{client: client, loc: loc}
}

func (s *Source) Name() string { return "backend" }

func (s *Source) Bookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	dtos, err := s.client.ListBookings(ctx, from, to)
	if err != nil {
		return nil, err
	}

	out := make([]model.Booking, 0, len(dtos))
	missingNames := false
	for _, d := range dtos {
		b, err := d.ToBooking(s.loc)
		if err != nil {
			appLog.Warn("backend booking dropped", "reason", err)
			continue
		}
		if b.PropertyName == "" {
			missingNames = true
		}
		out = append(out, b)
	}

	if missingNames {
		s.fillPropertyNames(ctx, out)
	}
	return out, nil
}

func (s *Source) fillPropertyNames(ctx context.Context, bookings []model.Booking) {
	props, err := s.client.ListProperties(ctx)
	if err != nil {
		appLog.Error("backend property lookup failed", err)
		return
	}
	names := make(map[string]string, len(props))
	for _, p := range props {
		names[string(p.ID)] = p.Name
	}
	for i := range bookings {
		if bookings[i].PropertyName == "" {
			bookings[i].PropertyName = names[bookings[i].PropertyID]
		}
	}
}

func (s *Source) Tasks(ctx context.Context, from, to time.Time) ([]model.VendorTask, error) {
	dtos, err := s.client.ListTasks(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]model.VendorTask, 0, len(dtos))
	for _, d := range dtos {
		t, err := d.ToTask(s.loc)
		if err != nil {
			appLog.Warn("backend task dropped", "reason", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
