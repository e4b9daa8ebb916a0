// Package refresh runs the periodic cache warm-up and snapshot cycle.
package refresh

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/robfig/cron/v3"

	"strcal/internal/capture"
	"strcal/internal/config"
	appLog "strcal/internal/log"
	"strcal/internal/source"
)

// Warmer refreshes the cached collection around ref.
type Warmer interface {
	Warm(ctx context.Context, ref time.Time) source.Collection
}

// CaptureFunc takes a snapshot; capture.CalendarPNG in production.
type CaptureFunc func(ctx context.Context, opts capture.Options) error

// Job is one refresh cycle: warm the month cache, then optionally capture.
type Job struct {
	warmer   Warmer
	cfg      *config.Config
	pageURL  string
	capture  CaptureFunc
	now      func() time.Time
	inFlight atomic.Bool
}

// NewJob builds a job capturing pageURL (the /calendar page of this server).
func NewJob(w Warmer, cfg *config.Config, pageURL string) *Job {
	return &Job{
		warmer:  w,
		cfg:     cfg,
		pageURL: pageURL,
		capture: capture.CalendarPNG,
		now:     time.Now,
	}
}

// RunOnce performs a single cycle. Source failures only show up in the
// warm-up log; the returned error is about the snapshot.
func (j *Job) RunOnce(ctx context.Context) error {
	if !j.inFlight.CompareAndSwap(false, true) {
		appLog.Warn("refresh already running; skipping")
		return nil
	}
	defer j.inFlight.Store(false)

	col := j.warmer.Warm(ctx, j.now())
	for _, err := range col.Errors {
		appLog.Warn("source unavailable during refresh", "error", err.Error())
	}

	if !j.cfg.Snapshot.Enabled {
		return nil
	}
	headers, err := authHeaders(j.cfg, j.now())
	if err != nil {
		return err
	}
	return j.capture(ctx, capture.Options{
		URL:        j.pageURL,
		OutputPath: j.cfg.Snapshot.OutputPath,
		Width:      j.cfg.Snapshot.Width,
		Height:     j.cfg.Snapshot.Height,
		Headers:    headers,
	})
}

// Start schedules the job on spec in the display zone and starts the cron.
// Callers stop it with Stop().
func Start(ctx context.Context, spec string, loc *time.Location, job *Job) (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, func() {
		if err := job.RunOnce(ctx); err != nil {
			appLog.Error("refresh cycle failed", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("refresh scheduled", "spec", spec, "timezone", loc.String())
	return c, nil
}

// authHeaders lets the headless browser through the server's own auth.
// Basic credentials win; otherwise a short-lived bearer token is minted.
func authHeaders(cfg *config.Config, now time.Time) (map[string]string, error) {
	if cfg.BasicAuth != nil && cfg.BasicAuth.Username != "" {
		raw := cfg.BasicAuth.Username + ":" + cfg.BasicAuth.Password
		return map[string]string{
			"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(raw)),
		}, nil
	}
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "snapshot",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	})
	signed, err := tok.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("refresh: sign snapshot token: %w", err)
	}
	return map[string]string{"Authorization": "Bearer " + signed}, nil
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
