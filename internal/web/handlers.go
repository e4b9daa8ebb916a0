package web

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"strcal/internal/calendar"
	"strcal/internal/gcal"
	appLog "strcal/internal/log"
	"strcal/internal/model"
	"strcal/internal/source"
)

const monthLayout = "2006-01"

// viewResponse wraps every grid with its resolved colors and data warnings.
type viewResponse struct {
	Window       calendar.ViewWindow    `json:"window"`
	Grid         any                    `json:"grid"`
	Colors       colorIndex             `json:"colors"`
	Warnings     []calendar.DataWarning `json:"warnings"`
	SourceErrors []string               `json:"sourceErrors,omitempty"`
}

type colorIndex struct {
	Bookings map[string]calendar.BookingColors `json:"bookings"`
	Tasks    map[string]string                 `json:"tasks"`
}

func (s *Server) colorIndex(bookings []model.Booking, tasks []model.VendorTask) colorIndex {
	r := s.colors.Resolver()
	idx := colorIndex{
		Bookings: make(map[string]calendar.BookingColors, len(bookings)),
		Tasks:    make(map[string]string, len(tasks)),
	}
	for _, b := range bookings {
		idx.Bookings[b.ID] = r.ForBooking(b)
	}
	for _, t := range tasks {
		idx.Tasks[t.ID] = r.ForTask(t)
	}
	return idx
}

func (s *Server) respond(c *gin.Context, w calendar.ViewWindow, grid any, col source.Collection, warnings []calendar.DataWarning, bookings []model.Booking, tasks []model.VendorTask) {
	resp := viewResponse{
		Window:   w,
		Grid:     grid,
		Colors:   s.colorIndex(bookings, tasks),
		Warnings: warnings,
	}
	for _, err := range col.Errors {
		resp.SourceErrors = append(resp.SourceErrors, err.Error())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDay(c *gin.Context) {
	day, err := s.dateParam(c, "date")
	if err != nil {
		badRequest(c, err)
		return
	}
	opts := s.options()
	w := calendar.WindowFor(calendar.ViewDay, day, opts.WeekStart)
	col, warnings := s.Collection(c.Request.Context(), w)

	grid := calendar.BuildDay(day, col.Bookings, col.Tasks, opts)
	bookings := make([]model.Booking, 0, len(grid.CheckIns)+len(grid.CheckOuts)+len(grid.Spanning))
	bookings = append(append(append(bookings, grid.CheckIns...), grid.CheckOuts...), grid.Spanning...)
	tasks := make([]model.VendorTask, 0, len(grid.Tasks))
	for _, slot := range grid.Tasks {
		tasks = append(tasks, slot.Task)
	}
	s.respond(c, w, grid, col, warnings, bookings, tasks)
}

func (s *Server) handleWeek(c *gin.Context) {
	ref, err := s.dateParam(c, "date")
	if err != nil {
		badRequest(c, err)
		return
	}
	opts := s.options()
	w := calendar.WindowFor(calendar.ViewWeek, ref, opts.WeekStart)
	col, warnings := s.Collection(c.Request.Context(), w)

	grid := calendar.BuildWeek(ref, col.Bookings, col.Tasks, opts)
	var bookings []model.Booking
	for _, row := range grid.Rows {
		for _, span := range row.Spans {
			bookings = append(bookings, span.Booking)
		}
	}
	var tasks []model.VendorTask
	for _, d := range grid.Days {
		tasks = append(tasks, d.Tasks...)
	}
	s.respond(c, w, grid, col, warnings, bookings, tasks)
}

func (s *Server) handleMonth(c *gin.Context) {
	month, err := s.monthParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	opts := s.options()
	w := calendar.WindowFor(calendar.ViewMonth, month, opts.WeekStart)
	col, warnings := s.Collection(c.Request.Context(), w)

	grid := calendar.BuildMonth(month, col.Bookings, col.Tasks, opts)
	s.respond(c, w, grid, col, warnings, calendar.InRange(col.Bookings, w.Start, w.End), nil)
}

func (s *Server) handleYear(c *gin.Context) {
	year := parseIntDefault(c.Query("year"), s.now().In(s.loc).Year())
	ref := time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc)
	opts := s.options()
	w := calendar.YearGridWindow(ref, opts.WeekStart)
	col, warnings := s.Collection(c.Request.Context(), w)

	grid := calendar.BuildYear(ref, col.Bookings, opts)
	s.respond(c, w, grid, col, warnings, nil, nil)
}

type occupancyResponse struct {
	Month      string                       `json:"month"`
	Percent    int                          `json:"percent"`
	Overall    calendar.Occupancy           `json:"overall"`
	Properties []calendar.PropertyOccupancy `json:"properties"`
	Warnings   []calendar.DataWarning       `json:"warnings"`
}

func (s *Server) handleOccupancy(c *gin.Context) {
	month, err := s.monthParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	w := calendar.WindowFor(calendar.ViewMonth, month, s.cfg.Weekday())
	col, warnings := s.Collection(c.Request.Context(), w)

	overall := calendar.MonthOccupancyStats(col.Bookings, month)
	c.JSON(http.StatusOK, occupancyResponse{
		Month:      month.Format(monthLayout),
		Percent:    overall.Percent,
		Overall:    overall,
		Properties: calendar.PropertyOccupancies(col.Bookings, month),
		Warnings:   warnings,
	})
}

func (s *Server) handleDaySummary(c *gin.Context) {
	day, err := s.dateParam(c, "date")
	if err != nil {
		badRequest(c, err)
		return
	}
	w := calendar.WindowFor(calendar.ViewDay, day, s.cfg.Weekday())
	col, _ := s.Collection(c.Request.Context(), w)
	c.JSON(http.StatusOK, gin.H{
		"date":    day.Format(time.DateOnly),
		"summary": calendar.DayCounts(col.Bookings, day),
	})
}

func (s *Server) handleListColors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"colors": s.colors.List(),
		"defaults": gin.H{
			"channel":  calendar.ChannelColors,
			"taskType": calendar.TaskTypeColors,
			"fallback": calendar.NeutralGray,
		},
	})
}

func (s *Server) handlePutColors(c *gin.Context) {
	var items []model.ColorAssignment
	if err := c.ShouldBindJSON(&items); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.colors.Upsert(items...); err != nil {
		badRequest(c, err)
		return
	}
	appLog.Info("color assignments updated", "count", len(items))
	c.JSON(http.StatusOK, gin.H{"colors": s.colors.List()})
}

func (s *Server) handleDeleteColor(c *gin.Context) {
	category := model.ColorCategory(c.Param("category"))
	if !s.colors.Delete(category, c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "color assignment not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.Invalidate()
	c.JSON(http.StatusAccepted, gin.H{"status": "cache cleared"})
}

// handlePreview serves the last captured PNG snapshot from disk.
func (s *Server) handlePreview(c *gin.Context) {
	if _, err := os.Stat(s.previewPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot captured yet"})
			return
		}
		appLog.Error("preview stat failed", err, "path", s.previewPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preview unavailable"})
		return
	}
	c.File(s.previewPath)
}

func (s *Server) handleGCalAuth(c *gin.Context) {
	if !s.cfg.GoogleCalendar.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "google calendar disabled"})
		return
	}
	state := uuid.NewString()
	u, err := gcal.AuthCodeURL(s.cfg.GoogleCalendar, state)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	s.oauthStates.Store(state, s.now().Add(10*time.Minute))
	c.JSON(http.StatusOK, gin.H{"auth_url": u, "state": state})
}

func (s *Server) handleGCalCallback(c *gin.Context) {
	state := c.Query("state")
	exp, ok := s.oauthStates.LoadAndDelete(state)
	if !ok || s.now().After(exp.(time.Time)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or expired state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	if err := s.exchange(c.Request.Context(), s.cfg.GoogleCalendar, code); err != nil {
		appLog.Error("google calendar authorization failed", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if s.authorized != nil {
		if err := s.authorized(); err != nil {
			appLog.Error("google calendar source registration failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token saved but owner calendar could not be enabled; restart to retry"})
			return
		}
	}
	s.Invalidate()
	appLog.Info("google calendar authorized")
	c.JSON(http.StatusOK, gin.H{"message": "authorization successful"})
}

// dateParam parses YYYY-MM-DD in the display zone; empty means today.
func (s *Server) dateParam(c *gin.Context, name string) (time.Time, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return calendar.StartOfDay(s.now().In(s.loc)), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
	if err != nil {
		return time.Time{}, errors.New(name + ": expected YYYY-MM-DD")
	}
	return t, nil
}

// monthParam parses ?month=YYYY-MM; empty means the current month.
func (s *Server) monthParam(c *gin.Context) (time.Time, error) {
	v := strings.TrimSpace(c.Query("month"))
	if v == "" {
		return calendar.FirstOfMonth(s.now().In(s.loc)), nil
	}
	t, err := time.ParseInLocation(monthLayout, v, s.loc)
	if err != nil {
		return time.Time{}, errors.New("month: expected YYYY-MM")
	}
	return t, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
