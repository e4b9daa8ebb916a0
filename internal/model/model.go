package model

import "time"

// Channel is the distribution channel a booking came in through.
type Channel string

const (
	ChannelAirbnb  Channel = "airbnb"
	ChannelVrbo    Channel = "vrbo"
	ChannelDirect  Channel = "direct"
	ChannelBooking Channel = "booking"
)

// Channels lists every known channel in display order.
var Channels = []Channel{ChannelAirbnb, ChannelVrbo, ChannelDirect, ChannelBooking}

// BookingStatus is the lifecycle state of a reservation or block.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusPending   BookingStatus = "pending"
	StatusBlocked   BookingStatus = "blocked"
)

// PaymentStatus is passed through from the backend. PaymentUnknown is used
// when the backend omits it.
type PaymentStatus string

const (
	PaymentUnknown  PaymentStatus = "unknown"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking represents one reservation or owner block.
//
// CheckIn / CheckOut carry wall-clock times in the display location; see
// ParseLocal. CheckOut is expected to be strictly after CheckIn, but records
// violating that are still accepted and surfaced as data warnings.
type Booking struct {
	ID           string        `json:"id"`
	PropertyID   string        `json:"propertyId"`
	PropertyName string        `json:"propertyName"`
	GuestName    string        `json:"guestName,omitempty"`
	CheckIn      time.Time     `json:"checkIn"`
	CheckOut     time.Time     `json:"checkOut"`
	Channel      Channel       `json:"channel"`
	Status       BookingStatus `json:"status"`

	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	GuestCount    int           `json:"guestCount,omitempty"`
	GuestEmail    string        `json:"guestEmail,omitempty"`
	GuestPhone    string        `json:"guestPhone,omitempty"`
	TotalAmount   float64       `json:"totalAmount,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// IsBlocked reports whether the booking is an owner/maintenance block.
func (b Booking) IsBlocked() bool {
	return b.Status == StatusBlocked
}

// DisplayGuestName returns the guest name, or "" for blocks whose guest
// fields are suppressed.
func (b Booking) DisplayGuestName() string {
	if b.IsBlocked() {
		return ""
	}
	return b.GuestName
}

// TaskType is the kind of service a vendor performs.
type TaskType string

const (
	TaskCleaning  TaskType = "cleaning"
	TaskChef      TaskType = "chef"
	TaskBartender TaskType = "bartender"
	TaskMassage   TaskType = "massage"
	TaskHandyman  TaskType = "handyman"
	TaskConcierge TaskType = "concierge"
)

// TaskTypes lists every known task type.
var TaskTypes = []TaskType{TaskCleaning, TaskChef, TaskBartender, TaskMassage, TaskHandyman, TaskConcierge}

// TaskStatus is the progress state of a vendor task.
type TaskStatus string

const (
	TaskScheduled  TaskStatus = "scheduled"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// VendorTask is a scheduled service task, optionally tied to a booking.
// BookingID is a lookup reference only.
type VendorTask struct {
	ID            string     `json:"id"`
	BookingID     string     `json:"bookingId,omitempty"`
	PropertyID    string     `json:"propertyId"`
	Type          TaskType   `json:"type"`
	VendorName    string     `json:"vendorName"`
	ScheduledTime time.Time  `json:"scheduledTime"`
	Duration      int        `json:"duration"` // minutes
	Status        TaskStatus `json:"status"`
	Notes         string     `json:"notes,omitempty"`
}

// End returns the scheduled end of the task.
func (t VendorTask) End() time.Time {
	return t.ScheduledTime.Add(time.Duration(t.Duration) * time.Minute)
}

// ColorCategory groups color assignments.
type ColorCategory string

const (
	CategoryProperty ColorCategory = "property"
	CategoryChannel  ColorCategory = "channel"
	CategoryCrew     ColorCategory = "crew"
	CategoryTaskType ColorCategory = "taskType"
)

// ColorAssignment is a user-configurable color for a named entity.
type ColorAssignment struct {
	ID       string        `json:"id" yaml:"id" binding:"required" validate:"required"`
	Category ColorCategory `json:"category" yaml:"category" binding:"required,oneof=property channel crew taskType" validate:"required,oneof=property channel crew taskType"`
	Name     string        `json:"name" yaml:"name"`
	Color    string        `json:"color" yaml:"color" binding:"required,hexcolor" validate:"required,hexcolor"`
}
