package web

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"strcal/internal/calendar"
	"strcal/internal/colors"
	"strcal/internal/config"
	"strcal/internal/gcal"
	appLog "strcal/internal/log"
	"strcal/internal/source"
)

const collectionTTL = 30 * time.Second

// Collector produces the merged bookings and tasks for a window.
type Collector interface {
	Collect(ctx context.Context, from, to time.Time) source.Collection
}

// Server exposes the calendar grids over HTTP. Fetched collections are cached
// per window for a short TTL; grids are derived again on every request.
type Server struct {
	cfg         *config.Config
	debug       bool
	collector   Collector
	colors      *colors.Store
	loc         *time.Location
	now         func() time.Time
	engine      *gin.Engine
	previewPath string

	cacheMu sync.RWMutex
	cache   map[string]*cachedCollection

	oauthStates sync.Map // state -> expiry
	exchange    func(ctx context.Context, cfg config.GoogleCalendarConfig, code string) error
	authorized  func() error
}

type cachedCollection struct {
	col       source.Collection
	warnings  []calendar.DataWarning
	updatedAt time.Time
}

// NewServer constructs a Server and registers its routes.
func NewServer(cfg *config.Config, collector Collector, store *colors.Store, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:         cfg,
		debug:       debug,
		collector:   collector,
		colors:      store,
		loc:         cfg.Location(),
		now:         time.Now,
		previewPath: cfg.Snapshot.OutputPath,
		cache:       make(map[string]*cachedCollection),
		exchange:    gcal.Exchange,
	}
	s.engine = s.newEngine()
	return s
}

// OnGoogleAuthorized sets the callback run after a successful consent flow,
// typically registering the owner calendar source.
func (s *Server) OnGoogleAuthorized(fn func() error) {
	s.authorized = fn
}

// Handler returns the gin engine as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl")))

	r.GET("/health", s.handleHealth)

	authed := r.Group("/", s.authMiddleware())
	authed.GET("/calendar", s.handleCalendarPage)
	authed.GET("/preview.png", s.handlePreview)

	api := authed.Group("/api")
	api.GET("/calendar/day", s.handleDay)
	api.GET("/calendar/week", s.handleWeek)
	api.GET("/calendar/month", s.handleMonth)
	api.GET("/calendar/year", s.handleYear)
	api.GET("/occupancy", s.handleOccupancy)
	api.GET("/summary/day", s.handleDaySummary)
	api.GET("/colors", s.handleListColors)
	api.PUT("/colors", s.handlePutColors)
	api.DELETE("/colors/:category/:id", s.handleDeleteColor)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/gcal/auth", s.handleGCalAuth)

	authed.GET("/oauth2/callback", s.handleGCalCallback)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// options builds grid options from config with "today" in the display zone.
func (s *Server) options() calendar.Options {
	return calendar.Options{
		WeekStart:         s.cfg.Weekday(),
		PixelsPerHour:     s.cfg.View.PixelsPerHour,
		MinSlotHeight:     s.cfg.View.MinSlotHeight,
		MaxVisiblePerCell: s.cfg.View.MaxVisiblePerCell,
		Today:             s.now().In(s.loc),
	}
}

// Collection returns the merged data for w and its data warnings, fetching
// at most once per TTL. Only complete collections are cached. Warnings are
// logged when the data is fetched.
func (s *Server) Collection(ctx context.Context, w calendar.ViewWindow) (source.Collection, []calendar.DataWarning) {
	key := fmt.Sprintf("%s|%s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))

	s.cacheMu.RLock()
	cc := s.cache[key]
	s.cacheMu.RUnlock()
	if cc != nil && s.now().Sub(cc.updatedAt) < collectionTTL {
		return cc.col, cc.warnings
	}

	col := s.collector.Collect(ctx, w.Start, w.End)
	warnings := inspect(col)

	// A cancelled request or a failing source yields a partial collection;
	// serve it but let the next request fetch again.
	if ctx.Err() != nil || len(col.Errors) > 0 {
		return col, warnings
	}

	s.cacheMu.Lock()
	s.evictExpiredLocked()
	s.cache[key] = &cachedCollection{col: col, warnings: warnings, updatedAt: s.now()}
	s.cacheMu.Unlock()
	return col, warnings
}

func (s *Server) evictExpiredLocked() {
	now := s.now()
	for k, cc := range s.cache {
		if now.Sub(cc.updatedAt) >= collectionTTL {
			delete(s.cache, k)
		}
	}
}

// Invalidate drops every cached collection.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	s.cache = make(map[string]*cachedCollection)
	s.cacheMu.Unlock()
}

// Warm refreshes the month collection around ref, as the refresh job does
// before each snapshot.
func (s *Server) Warm(ctx context.Context, ref time.Time) source.Collection {
	s.Invalidate()
	w := calendar.WindowFor(calendar.ViewMonth, ref.In(s.loc), s.cfg.Weekday())
	col, _ := s.Collection(ctx, w)
	appLog.Info("calendar cache warmed",
		"from", w.Start.Format(time.DateOnly),
		"to", w.End.Format(time.DateOnly),
		"bookings", len(col.Bookings),
		"tasks", len(col.Tasks),
		"source_errors", len(col.Errors),
	)
	return col
}

// inspect logs data warnings and returns them for the response.
func inspect(col source.Collection) []calendar.DataWarning {
	warnings := calendar.Inspect(col.Bookings, col.Tasks)
	for _, w := range warnings {
		appLog.Warn("calendar data warning", "kind", w.Kind, "id", w.EntityID, "detail", w.Message)
	}
	if warnings == nil {
		warnings = []calendar.DataWarning{}
	}
	return warnings
}
