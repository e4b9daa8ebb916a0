package ics

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "strcal/internal/log"
	"strcal/internal/model"
)

// Summaries channels use for owner blocks rather than guest stays.
var blockedMarkers = []string{"not available", "blocked", "closed", "unavailable"}

// ParseFeed converts the VEVENTs of one feed body into bookings in loc.
//
// Channel exports describe stays as all-day events (DTEND is the checkout
// date), so date-only values get the feed's check-in / check-out times.
// Cancelled events and events without UID are skipped; one broken event
// never drops the whole feed.
func ParseFeed(feed Feed, body []byte, loc *time.Location) ([]model.Booking, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse feed %s: %w", feed.ID, err)
	}

	inH, inM := clockOrDefault(feed.CheckInTime, 15, 0)
	outH, outM := clockOrDefault(feed.CheckOutTime, 11, 0)

	bookings := make([]model.Booking, 0)
	for _, ve := range cal.Events() {
		b, ok, perr := parseEvent(feed, ve, loc, inH, inM, outH, outM)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "feed", feed.ID, "reason", perr)
			continue
		}
		if ok {
			bookings = append(bookings, b)
		}
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CheckIn.Before(bookings[j].CheckIn)
	})
	appLog.Debug("ics parse completed", "feed", feed.ID, "bookings", len(bookings))
	return bookings, nil
}

func parseEvent(feed Feed, ve *ical.VEvent, loc *time.Location, inH, inM, outH, outM int) (model.Booking, bool, error) {
	uid := propValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return model.Booking{}, false, errors.New("missing UID")
	}
	if strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED") {
		return model.Booking{}, false, nil
	}

	checkIn, err := eventTime(ve, ical.ComponentPropertyDtStart, loc, inH, inM)
	if err != nil {
		return model.Booking{}, false, fmt.Errorf("uid %s: DTSTART: %w", uid, err)
	}
	checkOut, err := eventTime(ve, ical.ComponentPropertyDtEnd, loc, outH, outM)
	if err != nil {
		// Single-date events: one night.
		checkOut = time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day()+1, outH, outM, 0, 0, loc)
	}

	summary := strings.TrimSpace(propValue(ve, ical.ComponentPropertySummary))
	channel := model.Channel(strings.ToLower(feed.Channel))
	if channel == "" {
		channel = model.ChannelDirect
	}

	b := model.Booking{
		ID:            feed.ID + ":" + uid,
		PropertyID:    feed.PropertyID,
		PropertyName:  feed.PropertyName,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Channel:       channel,
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PaymentUnknown,
		Notes:         strings.TrimSpace(propValue(ve, ical.ComponentPropertyDescription)),
	}
	if isBlocked(summary) {
		b.Status = model.StatusBlocked
	} else {
		b.GuestName = guestFromSummary(summary)
	}
	if strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "TENTATIVE") {
		b.Status = model.StatusPending
	}
	return b, true, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

// eventTime reads DTSTART/DTEND. Date-only values become that date at h:m in
// loc; date-times go through the library's TZID handling and are converted
// to loc.
func eventTime(ve *ical.VEvent, p ical.ComponentProperty, loc *time.Location, h, m int) (time.Time, error) {
	prop := ve.GetProperty(p)
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return time.Time{}, errors.New("missing")
	}
	val := strings.TrimSpace(prop.Value)

	if isDateOnly(prop, val) {
		d, err := time.ParseInLocation("20060102", val, loc)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc), nil
	}

	var (
		t   time.Time
		err error
	)
	if p == ical.ComponentPropertyDtEnd {
		t, err = ve.GetEndAt()
	} else {
		t, err = ve.GetStartAt()
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func isDateOnly(prop *ical.IANAProperty, val string) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(val, "T")
}

func isBlocked(summary string) bool {
	s := strings.ToLower(summary)
	for _, marker := range blockedMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// guestFromSummary extracts "Jane Doe" from "Reserved - Jane Doe"; a bare
// "Reserved" carries no guest identity.
func guestFromSummary(summary string) string {
	if i := strings.Index(summary, " - "); i >= 0 {
		return strings.TrimSpace(summary[i+3:])
	}
	if strings.EqualFold(summary, "reserved") {
		return ""
	}
	return summary
}

// clockOrDefault parses "HH:MM".
func clockOrDefault(s string, h, m int) (int, int) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return h, m
	}
	return t.Hour(), t.Minute()
}
