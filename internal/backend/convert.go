package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"strcal/internal/model"
)

// ID accepts both JSON strings and numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("backend: id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

type BookingDTO struct {
	ID            ID       `json:"id"`
	PropertyID    ID       `json:"property_id"`
	PropertyName  string   `json:"property_name"`
	GuestName     string   `json:"guest_name"`
	CheckIn       string   `json:"check_in"`
	CheckOut      string   `json:"check_out"`
	Channel       string   `json:"channel"`
	Status        string   `json:"status"`
	PaymentStatus string   `json:"payment_status"`
	GuestCount    int      `json:"guest_count"`
	GuestEmail    string   `json:"guest_email"`
	GuestPhone    string   `json:"guest_phone"`
	TotalAmount   *float64 `json:"total_amount"`
	Notes         string   `json:"notes"`
}

type TaskDTO struct {
	ID            ID     `json:"id"`
	BookingID     ID     `json:"booking_id"`
	PropertyID    ID     `json:"property_id"`
	Type          string `json:"type"`
	VendorName    string `json:"vendor_name"`
	ScheduledTime string `json:"scheduled_time"`
	Duration      int    `json:"duration"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
}

type PropertyDTO struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ToBooking converts a backend record. Timestamps are local-time literals:
// any zone suffix is dropped and the wall clock is read in loc.
//
// Payment status is passed through lower-cased; when the backend omits it
// the booking gets PaymentUnknown, whatever total_amount says.
func (d BookingDTO) ToBooking(loc *time.Location) (model.Booking, error) {
	in, err := model.ParseLocal(d.CheckIn, loc)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s: check_in: %w", d.ID, err)
	}
	out, err := model.ParseLocal(d.CheckOut, loc)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s: check_out: %w", d.ID, err)
	}

	b := model.Booking{
		ID:            string(d.ID),
		PropertyID:    string(d.PropertyID),
		PropertyName:  d.PropertyName,
		GuestName:     d.GuestName,
		CheckIn:       in,
		CheckOut:      out,
		Channel:       normalizeChannel(d.Channel),
		Status:        normalizeBookingStatus(d.Status),
		PaymentStatus: model.PaymentStatus(strings.ToLower(strings.TrimSpace(d.PaymentStatus))),
		GuestCount:    d.GuestCount,
		GuestEmail:    d.GuestEmail,
		GuestPhone:    d.GuestPhone,
		Notes:         d.Notes,
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = model.PaymentUnknown
	}
	if d.TotalAmount != nil {
		b.TotalAmount = *d.TotalAmount
	}
	return b, nil
}

func (d TaskDTO) ToTask(loc *time.Location) (model.VendorTask, error) {
	at, err := model.ParseLocal(d.ScheduledTime, loc)
	if err != nil {
		return model.VendorTask{}, fmt.Errorf("task %s: scheduled_time: %w", d.ID, err)
	}
	status := model.TaskStatus(strings.ToLower(strings.TrimSpace(d.Status)))
	switch status {
	case model.TaskScheduled, model.TaskInProgress, model.TaskCompleted:
	case "in_progress":
		status = model.TaskInProgress
	default:
		status = model.TaskScheduled
	}
	return model.VendorTask{
		ID:            string(d.ID),
		BookingID:     string(d.BookingID),
		PropertyID:    string(d.PropertyID),
		Type:          model.TaskType(strings.ToLower(strings.TrimSpace(d.Type))),
		VendorName:    d.VendorName,
		ScheduledTime: at,
		Duration:      d.Duration,
		Status:        status,
		Notes:         d.Notes,
	}, nil
}

func normalizeChannel(s string) model.Channel {
	c := model.Channel(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case model.ChannelAirbnb, model.ChannelVrbo, model.ChannelDirect, model.ChannelBooking:
		return c
	case "booking.com", "booking_com":
		return model.ChannelBooking
	case "":
		return model.ChannelDirect
	default:
		return c
	}
}

func normalizeBookingStatus(s string) model.BookingStatus {
	st := model.BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case model.StatusConfirmed, model.StatusPending, model.StatusBlocked:
		return st
	case "block", "owner_block":
		return model.StatusBlocked
	default:
		return model.StatusConfirmed
	}
}
