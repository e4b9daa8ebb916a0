package ics

import (
	"context"
	"errors"
	"time"

	"strcal/internal/calendar"
	appLog "strcal/internal/log"
	"strcal/internal/model"
)

// Source exposes a set of channel feeds as a booking source.
type Source struct {
	fetcher *Fetcher
	feeds   []Feed
	loc     *time.Location
}

func NewSource(fetcher *Fetcher, feeds []Feed, loc *time.Location) *Source {
	return &Source{fetcher: fetcher, feeds: feeds, loc: loc}
}

func (s *Source) Name() string { return "ics" }

// Bookings fetches and parses every feed, keeping bookings overlapping
// [from, to]. It fails only when no feed produced anything.
func (s *Source) Bookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	results, errs := s.fetcher.FetchAll(ctx, s.feeds)

	out := make([]model.Booking, 0)
	for _, res := range results {
		bookings, err := ParseFeed(res.Feed, res.Body, s.loc)
		if err != nil {
			appLog.Error("ics parse failed", err, "feed", res.Feed.ID, "url", redactURL(res.Feed.URL))
			errs = append(errs, err)
			continue
		}
		out = append(out, calendar.Touching(bookings, from, to)...)
	}

	if len(errs) > 0 && len(errs) == len(s.feeds) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
