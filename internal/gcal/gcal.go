// Package gcal reads an owner's Google Calendar and reports its events as
// blocked bookings for one property.
package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"strcal/internal/config"
	"strcal/internal/model"
)

// ErrNotConfigured is returned when client credentials are missing.
var ErrNotConfigured = errors.New("gcal: google calendar not configured")

// OAuthConfig builds the read-only OAuth2 config from credentials supplied
// through the environment.
func OAuthConfig(cfg config.GoogleCalendarConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthCodeURL starts the consent flow; offline access yields a refresh token.
func AuthCodeURL(cfg config.GoogleCalendarConfig, state string) (string, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token and stores it in the
// configured token file.
func Exchange(ctx context.Context, cfg config.GoogleCalendarConfig, code string) error {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return err
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("gcal: exchange code: %w", err)
	}
	return SaveToken(cfg.TokenFile, tok)
}

func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gcal: read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("gcal: decode token: %w", err)
	}
	return &tok, nil
}

func SaveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return errors.New("gcal: token_file is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Source lists owner events as blocked bookings.
type Source struct {
	svc          *calendar.Service
	calendarID   string
	propertyID   string
	propertyName string
	loc          *time.Location
}

// NewSource builds a calendar service from the stored token. The oauth2
// client refreshes the access token as needed.
func NewSource(ctx context.Context, cfg config.GoogleCalendarConfig, loc *time.Location) (*Source, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	return NewSourceWithService(svc, cfg, loc), nil
}

func NewSourceWithService(svc *calendar.Service, cfg config.GoogleCalendarConfig, loc *time.Location) *Source {
	if loc == nil {
		loc = time.Local
	}
	id := cfg.CalendarID
	if id == "" {
		id = "primary"
	}
	return &Source{
		svc:          svc,
		calendarID:   id,
		propertyID:   cfg.PropertyID,
		propertyName: cfg.PropertyName,
		loc:          loc,
	}
}

func (s *Source) Name() string { return "gcal" }

func (s *Source) Bookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	out := make([]model.Booking, 0)
	call := s.svc.Events.List(s.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		MaxResults(250)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			b, err := s.toBooking(item)
			if err != nil {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gcal: list events: %w", err)
	}
	return out, nil
}

// toBooking maps an event to a block. All-day events end on an exclusive
// date, so the block ends just before that midnight and its last day is
// the event's last day.
func (s *Source) toBooking(item *calendar.Event) (model.Booking, error) {
	if item.Start == nil || item.End == nil {
		return model.Booking{}, errors.New("event without start/end")
	}
	in, err := s.eventTime(item.Start)
	if err != nil {
		return model.Booking{}, err
	}
	out, err := s.eventTime(item.End)
	if err != nil {
		return model.Booking{}, err
	}
	if item.End.DateTime == "" {
		out = out.Add(-time.Minute)
	}
	return model.Booking{
		ID:            "gcal:" + item.Id,
		PropertyID:    s.propertyID,
		PropertyName:  s.propertyName,
		CheckIn:       in,
		CheckOut:      out,
		Channel:       model.ChannelDirect,
		Status:        model.StatusBlocked,
		PaymentStatus: model.PaymentUnknown,
		Notes:         item.Summary,
	}, nil
}

func (s *Source) eventTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(s.loc), nil
	}
	return time.ParseInLocation("2006-01-02", dt.Date, s.loc)
}
