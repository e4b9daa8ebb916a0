// Package pgsource reads bookings and vendor tasks straight from a Postgres
// replica of the property-management database. It never writes.
package pgsource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"strcal/internal/model"
)

const bookingsQuery = `SELECT b.id::text, b.property_id::text, COALESCE(p.name, ''), COALESCE(b.guest_name, ''),
       b.check_in, b.check_out, COALESCE(b.channel, ''), COALESCE(b.status, ''),
       COALESCE(b.payment_status, ''), COALESCE(b.guest_count, 0),
       COALESCE(b.guest_email, ''), COALESCE(b.guest_phone, ''),
       COALESCE(b.total_amount, 0)::float8, COALESCE(b.notes, '')
  FROM bookings b
  LEFT JOIN properties p ON p.id = b.property_id
 WHERE b.check_in::date <= $2::date AND b.check_out::date >= $1::date
 ORDER BY b.check_in, b.id`

const tasksQuery = `SELECT t.id::text, COALESCE(t.booking_id::text, ''), t.property_id::text, t.type,
       COALESCE(t.vendor_name, ''), t.scheduled_time, t.duration,
       COALESCE(t.status, ''), COALESCE(t.notes, '')
  FROM vendor_tasks t
 WHERE t.scheduled_time::date BETWEEN $1::date AND $2::date
 ORDER BY t.scheduled_time, t.id`

// Store wraps a read-only connection pool.
type Store struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// Open connects and verifies the pool. Sessions are forced read-only.
func Open(ctx context.Context, url string, loc *time.Location) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("pgsource: parse url: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgsource: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgsource: ping: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{pool: pool, loc: loc}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Bookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, bookingsQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("pgsource: query bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var (
			b                        model.Booking
			channel, status, payment string
			checkIn, checkOut        time.Time
		)
		if err := rows.Scan(&b.ID, &b.PropertyID, &b.PropertyName, &b.GuestName,
			&checkIn, &checkOut, &channel, &status, &payment, &b.GuestCount,
			&b.GuestEmail, &b.GuestPhone, &b.TotalAmount, &b.Notes); err != nil {
			return nil, fmt.Errorf("pgsource: scan booking: %w", err)
		}
		b.CheckIn = wallClock(checkIn, s.loc)
		b.CheckOut = wallClock(checkOut, s.loc)
		b.Channel = model.Channel(strings.ToLower(channel))
		if b.Channel == "" {
			b.Channel = model.ChannelDirect
		}
		b.Status = bookingStatus(status)
		b.PaymentStatus = paymentStatus(payment)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgsource: bookings: %w", err)
	}
	return out, nil
}

func (s *Store) Tasks(ctx context.Context, from, to time.Time) ([]model.VendorTask, error) {
	rows, err := s.pool.Query(ctx, tasksQuery, from, to)
	if err != nil {
		return nil, fmt.Errorf("pgsource: query tasks: %w", err)
	}
	// CollectRows closes rows.
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.VendorTask, error) {
		var (
			t           model.VendorTask
			typ, status string
			scheduled   time.Time
		)
		err := row.Scan(&t.ID, &t.BookingID, &t.PropertyID, &typ, &t.VendorName,
			&scheduled, &t.Duration, &status, &t.Notes)
		t.Type = model.TaskType(strings.ToLower(typ))
		t.Status = taskStatus(status)
		t.ScheduledTime = wallClock(scheduled, s.loc)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgsource: tasks: %w", err)
	}
	return out, nil
}

// wallClock keeps the stored clock reading and places it in loc. Columns are
// "timestamp without time zone" holding local times, which pgx returns as UTC.
func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func bookingStatus(s string) model.BookingStatus {
	switch st := model.BookingStatus(strings.ToLower(s)); st {
	case model.StatusPending, model.StatusBlocked:
		return st
	default:
		return model.StatusConfirmed
	}
}

func paymentStatus(s string) model.PaymentStatus {
	if s == "" {
		return model.PaymentUnknown
	}
	return model.PaymentStatus(strings.ToLower(s))
}

func taskStatus(s string) model.TaskStatus {
	switch st := model.TaskStatus(strings.ReplaceAll(strings.ToLower(s), "_", "-")); st {
	case model.TaskInProgress, model.TaskCompleted:
		return st
	default:
		return model.TaskScheduled
	}
}
