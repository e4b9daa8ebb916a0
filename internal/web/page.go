package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"strcal/internal/calendar"
)

// templateFS holds the server-rendered month page the snapshot job captures.
//
//go:embed templates/*.tmpl
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"day": func(t time.Time) int { return t.Day() },
	"monthTitle": func(t time.Time) string {
		return t.Format("January 2006")
	},
	"weekdays": func(start time.Weekday) []string {
		out := make([]string, 7)
		for i := range out {
			out[i] = time.Weekday((int(start) + i) % 7).String()[:3]
		}
		return out
	},
}

type pageBooking struct {
	Label   string
	Color   string
	Channel string
	IsStart bool
	IsEnd   bool
}

type pageCell struct {
	calendar.MonthCell
	Items []pageBooking
}

type pageData struct {
	Month     time.Time
	WeekStart time.Weekday
	Weeks     [][]pageCell
	Occupancy calendar.Occupancy
	Summary   calendar.DaySummary
	Warnings  int
	Errors    int
	Generated string
}

// handleCalendarPage renders the month grid as HTML for browsers and for
// headless capture. The root element carries data-ready once rendered.
func (s *Server) handleCalendarPage(c *gin.Context) {
	month, err := s.monthParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	opts := s.options()
	w := calendar.WindowFor(calendar.ViewMonth, month, opts.WeekStart)
	col, warnings := s.Collection(c.Request.Context(), w)

	grid := calendar.BuildMonth(month, col.Bookings, col.Tasks, opts)
	r := s.colors.Resolver()

	data := pageData{
		Month:     grid.Month,
		WeekStart: opts.WeekStart,
		Occupancy: calendar.MonthOccupancyStats(col.Bookings, month),
		Summary:   calendar.DayCounts(col.Bookings, opts.Today),
		Warnings:  len(warnings),
		Errors:    len(col.Errors),
		Generated: s.now().In(s.loc).Format("2006-01-02 15:04"),
	}
	for _, week := range grid.Weeks {
		row := make([]pageCell, 0, len(week))
		for _, cell := range week {
			pc := pageCell{MonthCell: cell}
			for _, cb := range cell.Bookings {
				label := cb.Booking.PropertyName
				if g := cb.Booking.DisplayGuestName(); g != "" && cb.IsStart {
					label += " · " + g
				}
				pc.Items = append(pc.Items, pageBooking{
					Label:   label,
					Color:   r.ForBooking(cb.Booking).Property,
					Channel: string(cb.Booking.Channel),
					IsStart: cb.IsStart,
					IsEnd:   cb.IsEnd,
				})
			}
			row = append(row, pc)
		}
		data.Weeks = append(data.Weeks, row)
	}

	c.HTML(http.StatusOK, "calendar.tmpl", data)
}
