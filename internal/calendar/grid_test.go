package calendar

import (
	"testing"
	"time"

	"strcal/internal/model"
)

func TestPlaceTaskPositions(t *testing.T) {
	task := model.VendorTask{ID: "t", ScheduledTime: at(2025, 3, 10, 9, 15), Duration: 30}

	slot := PlaceTask(task, 60, 30)
	if slot.Top != 555 {
		t.Fatalf("expected top 555, got %v", slot.Top)
	}
	if slot.Height != 30 {
		t.Fatalf("expected height 30, got %v", slot.Height)
	}

	task.Duration = 5
	if got := PlaceTask(task, 60, 30).Height; got != 30 {
		t.Fatalf("expected height floored to 30, got %v", got)
	}
	if got := PlaceTask(task, 60, 0).Height; got != 5 {
		t.Fatalf("expected unfloored height 5, got %v", got)
	}
	if got := PlaceTask(task, 120, 0).Top; got != 1110 {
		t.Fatalf("expected top 1110 at 120px/h, got %v", got)
	}
}

func TestBuildDaySplitsBookings(t *testing.T) {
	d := day(2025, 3, 11)
	bookings := []model.Booking{
		stay("arriving", "p1", at(2025, 3, 11, 15, 0), at(2025, 3, 14, 11, 0)),
		stay("leaving", "p2", at(2025, 3, 8, 15, 0), at(2025, 3, 11, 11, 0)),
		stay("staying", "p3", at(2025, 3, 9, 15, 0), at(2025, 3, 13, 11, 0)),
		stay("daytrip", "p4", at(2025, 3, 11, 9, 0), at(2025, 3, 11, 18, 0)),
		stay("elsewhere", "p5", at(2025, 3, 1, 15, 0), at(2025, 3, 3, 11, 0)),
	}
	tasks := []model.VendorTask{
		{ID: "late", ScheduledTime: at(2025, 3, 11, 16, 0), Duration: 90},
		{ID: "early", ScheduledTime: at(2025, 3, 11, 9, 15), Duration: 30},
		{ID: "tomorrow", ScheduledTime: at(2025, 3, 12, 9, 0), Duration: 30},
	}

	opts := DefaultOptions()
	opts.MinSlotHeight = 30
	g := BuildDay(d, bookings, tasks, opts)

	if len(g.Hours) != 24 {
		t.Fatalf("expected 24 hour slots, got %d", len(g.Hours))
	}
	if len(g.Tasks) != 2 || g.Tasks[0].Task.ID != "early" {
		t.Fatalf("expected 2 tasks starting with early, got %+v", g.Tasks)
	}
	if len(g.Hours[9].Tasks) != 1 || len(g.Hours[16].Tasks) != 1 {
		t.Fatalf("expected tasks bucketed at hours 9 and 16")
	}
	if g.Tasks[1].Height != 90 {
		t.Fatalf("expected 90px height for late task, got %v", g.Tasks[1].Height)
	}

	ids := func(bs []model.Booking) []string {
		out := []string{}
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}
	if got := ids(g.CheckIns); len(got) != 2 || got[0] != "daytrip" || got[1] != "arriving" {
		t.Fatalf("unexpected check-ins %v", got)
	}
	if got := ids(g.CheckOuts); len(got) != 2 || got[0] != "leaving" || got[1] != "daytrip" {
		t.Fatalf("unexpected checkouts %v", got)
	}
	if got := ids(g.Spanning); len(got) != 1 || got[0] != "staying" {
		t.Fatalf("unexpected spanning %v", got)
	}
	if g.Summary != (DaySummary{CheckIns: 2, CheckOuts: 2, OccupiedCount: 4}) {
		t.Fatalf("unexpected summary %+v", g.Summary)
	}
}

func TestBuildWeekSpans(t *testing.T) {
	ref := at(2025, 3, 12, 10, 0)
	bookings := []model.Booking{
		stay("before", "p1", at(2025, 3, 5, 15, 0), at(2025, 3, 11, 11, 0)),
		stay("after", "p1", at(2025, 3, 13, 15, 0), at(2025, 3, 20, 11, 0)),
		stay("inside", "p2", at(2025, 3, 10, 15, 0), at(2025, 3, 12, 11, 0)),
		stay("through", "p3", at(2025, 3, 1, 15, 0), at(2025, 3, 30, 11, 0)),
		stay("gone", "p4", at(2025, 3, 1, 15, 0), at(2025, 3, 3, 11, 0)),
	}

	g := BuildWeek(ref, bookings, nil, Options{})

	if len(g.Days) != 7 || !g.Days[0].Date.Equal(day(2025, 3, 9)) {
		t.Fatalf("expected week to start Sunday March 9, got %+v", g.Days)
	}
	if len(g.Rows) != 3 {
		t.Fatalf("expected 3 property rows, got %d", len(g.Rows))
	}

	want := map[string]WeekSpan{
		"before":  {StartIndex: 0, EndIndexExclusive: 3, Span: 3, StartsInWindow: false, EndsInWindow: true},
		"after":   {StartIndex: 4, EndIndexExclusive: 7, Span: 3, StartsInWindow: true, EndsInWindow: false},
		"inside":  {StartIndex: 1, EndIndexExclusive: 4, Span: 3, StartsInWindow: true, EndsInWindow: true},
		"through": {StartIndex: 0, EndIndexExclusive: 7, Span: 7, StartsInWindow: false, EndsInWindow: false},
	}
	seen := 0
	for _, row := range g.Rows {
		for _, s := range row.Spans {
			w, ok := want[s.Booking.ID]
			if !ok {
				t.Fatalf("unexpected booking %s in week", s.Booking.ID)
			}
			seen++
			if s.StartIndex != w.StartIndex || s.EndIndexExclusive != w.EndIndexExclusive || s.Span != w.Span ||
				s.StartsInWindow != w.StartsInWindow || s.EndsInWindow != w.EndsInWindow {
				t.Fatalf("%s: expected %+v, got %+v", s.Booking.ID, w, s)
			}
		}
	}
	if seen != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), seen)
	}

	p1 := g.Rows[0]
	if p1.PropertyID != "p1" || len(p1.Spans) != 2 || p1.Spans[0].Booking.ID != "before" {
		t.Fatalf("expected p1 row with before then after, got %+v", p1)
	}
}

func TestWeekSpansNeverExceedWeek(t *testing.T) {
	// Non-touching stays for one property: each ends at least a day before the
	// next begins. Same-day turnovers are covered by TestWeekTurnoverSharesColumn.
	bookings := []model.Booking{
		stay("a", "p", at(2025, 3, 6, 15, 0), at(2025, 3, 9, 11, 0)),
		stay("b", "p", at(2025, 3, 10, 15, 0), at(2025, 3, 11, 11, 0)),
		stay("c", "p", at(2025, 3, 12, 15, 0), at(2025, 3, 13, 11, 0)),
		stay("d", "p", at(2025, 3, 14, 15, 0), at(2025, 3, 19, 11, 0)),
	}

	for offset := -3; offset <= 10; offset++ {
		g := BuildWeek(AddDays(day(2025, 3, 9), offset), bookings, nil, Options{})
		for _, row := range g.Rows {
			total := 0
			for _, s := range row.Spans {
				if s.Span < 1 {
					t.Fatalf("expected span >= 1, got %d", s.Span)
				}
				total += s.Span
			}
			if total > 7 {
				t.Fatalf("offset %d: span total %d exceeds a week", offset, total)
			}
		}
	}
}

func TestWeekTurnoverSharesColumn(t *testing.T) {
	// A checks out at 11:00 and B checks in at 15:00 on Wednesday the 12th.
	// Both occupy that day, so each row counts it once.
	bookings := []model.Booking{
		stay("a", "p", at(2025, 3, 9, 15, 0), at(2025, 3, 12, 11, 0)),
		stay("b", "p", at(2025, 3, 12, 15, 0), at(2025, 3, 16, 11, 0)),
	}
	g := BuildWeek(day(2025, 3, 9), bookings, nil, Options{})
	if len(g.Rows) != 1 || len(g.Rows[0].Spans) != 2 {
		t.Fatalf("expected one row with two spans, got %+v", g.Rows)
	}

	spans := map[string]WeekSpan{}
	total := 0
	for _, s := range g.Rows[0].Spans {
		spans[s.Booking.ID] = s
		total += s.Span
	}
	a, b := spans["a"], spans["b"]
	if a.StartIndex != 0 || a.EndIndexExclusive != 4 || !a.EndsInWindow {
		t.Fatalf("unexpected span for a: %+v", a)
	}
	if b.StartIndex != 3 || b.EndIndexExclusive != 7 || !b.StartsInWindow || b.EndsInWindow {
		t.Fatalf("unexpected span for b: %+v", b)
	}
	if a.EndIndexExclusive-1 != b.StartIndex {
		t.Fatalf("expected turnover column shared, got a end %d b start %d", a.EndIndexExclusive, b.StartIndex)
	}
	if total != 8 {
		t.Fatalf("expected 7 days plus one shared turnover column, got %d", total)
	}
}

func TestYearGridWindowCoversPaddedCells(t *testing.T) {
	w := YearGridWindow(day(2025, 6, 1), time.Sunday)
	if !w.Start.Equal(day(2024, 12, 29)) {
		t.Fatalf("expected window to open on Dec 29 2024, got %v", w.Start)
	}
	if !SameDay(w.End, day(2026, 1, 3)) || !w.End.Equal(EndOfDay(day(2026, 1, 3))) {
		t.Fatalf("expected window to close at the end of Jan 3 2026, got %v", w.End)
	}

	// A stay over New Year shows on January's leading cells.
	nye := stay("nye", "p", at(2024, 12, 30, 15, 0), at(2025, 1, 2, 11, 0))
	g := BuildYear(day(2025, 1, 1), InRange([]model.Booking{nye}, w.Start, w.End), Options{})
	jan := g.Months[0].Weeks[0]
	if jan[0].HasBooking || !jan[1].HasBooking || jan[1].IsCurrentMonth {
		t.Fatalf("expected Dec 30 padded cell booked and Dec 29 free, got %+v %+v", jan[0], jan[1])
	}
}

func TestBuildMonthLayout(t *testing.T) {
	g := BuildMonth(day(2025, 3, 17), nil, nil, Options{})
	if len(g.Weeks) != 6 {
		t.Fatalf("expected 6 weeks for March 2025, got %d", len(g.Weeks))
	}
	first := g.Weeks[0][0]
	if !first.Date.Equal(day(2025, 2, 23)) || first.IsCurrentMonth {
		t.Fatalf("expected grid to open on Feb 23 outside the month, got %+v", first)
	}
	if last := g.Weeks[5][6]; !last.Date.Equal(day(2025, 4, 5)) {
		t.Fatalf("expected grid to close on Apr 5, got %v", last.Date)
	}
	if cell := g.Weeks[0][6]; !cell.IsCurrentMonth || cell.Date.Day() != 1 {
		t.Fatalf("expected Saturday March 1 in current month, got %+v", cell)
	}

	feb := BuildMonth(day(2015, 2, 10), nil, nil, Options{})
	if len(feb.Weeks) != 4 {
		t.Fatalf("expected 4 weeks for February 2015, got %d", len(feb.Weeks))
	}
}

func TestBuildMonthEmpty(t *testing.T) {
	g := BuildMonth(day(2025, 4, 1), []model.Booking{}, nil, Options{})
	for _, c := range g.Cells() {
		if len(c.Bookings) != 0 || c.Total != 0 || c.Overflow != 0 {
			t.Fatalf("expected empty cell, got %+v", c)
		}
		if c.Bookings == nil {
			t.Fatalf("expected non-nil booking list")
		}
	}
	if len(g.Cells()) != 35 {
		t.Fatalf("expected 35 cells for April 2025, got %d", len(g.Cells()))
	}
	if p := MonthOccupancy(nil, day(2025, 4, 1)); p != 0 {
		t.Fatalf("expected 0%% occupancy, got %d", p)
	}
}

func TestBuildMonthOneNightStay(t *testing.T) {
	b := stay("one", "p", at(2025, 3, 10, 15, 0), at(2025, 3, 11, 11, 0))
	g := BuildMonth(day(2025, 3, 1), []model.Booking{b}, nil, Options{})

	var marked []CellBooking
	for _, c := range g.Cells() {
		marked = append(marked, c.Bookings...)
	}
	if len(marked) != 2 {
		t.Fatalf("expected 2 occupied cells, got %d", len(marked))
	}
	if !marked[0].IsStart || marked[0].IsEnd {
		t.Fatalf("expected first cell to be start only, got %+v", marked[0])
	}
	if marked[1].IsStart || !marked[1].IsEnd {
		t.Fatalf("expected second cell to be end only, got %+v", marked[1])
	}
}

func TestBuildMonthOverflow(t *testing.T) {
	var bookings []model.Booking
	for i, p := range []string{"a", "b", "c", "d", "e"} {
		bookings = append(bookings, stay(p, p, at(2025, 3, 15, 10+i, 0), at(2025, 3, 16, 11, 0)))
	}
	tasks := []model.VendorTask{
		{ID: "t1", ScheduledTime: at(2025, 3, 15, 11, 0), Duration: 60},
		{ID: "t2", ScheduledTime: at(2025, 3, 15, 14, 0), Duration: 60},
	}

	g := BuildMonth(day(2025, 3, 1), bookings, tasks, Options{MaxVisiblePerCell: 3})
	var cell MonthCell
	for _, c := range g.Cells() {
		if c.Date.Equal(day(2025, 3, 15)) {
			cell = c
		}
	}
	if cell.Total != 5 || len(cell.Bookings) != 3 || cell.Overflow != 2 {
		t.Fatalf("expected 3 visible + 2 overflow, got %d visible, total %d, overflow %d",
			len(cell.Bookings), cell.Total, cell.Overflow)
	}
	if cell.Bookings[0].Booking.ID != "a" {
		t.Fatalf("expected earliest check-in first, got %s", cell.Bookings[0].Booking.ID)
	}
	if cell.TaskCount != 2 {
		t.Fatalf("expected 2 tasks, got %d", cell.TaskCount)
	}

	if len(bookings) != 5 || bookings[0].ID != "a" {
		t.Fatalf("expected input bookings to be untouched")
	}
}

func TestBuildMonthMarksToday(t *testing.T) {
	g := BuildMonth(day(2025, 3, 1), nil, nil, Options{Today: at(2025, 3, 20, 8, 0)})
	today := 0
	for _, c := range g.Cells() {
		if c.IsToday {
			today++
			if c.Date.Day() != 20 {
				t.Fatalf("expected March 20 marked today, got %v", c.Date)
			}
		}
	}
	if today != 1 {
		t.Fatalf("expected exactly one today cell, got %d", today)
	}
}

func TestBuildYear(t *testing.T) {
	bookings := []model.Booking{
		stay("nye", "p", at(2024, 12, 30, 15, 0), at(2025, 1, 2, 11, 0)),
		stay("spring", "p", at(2025, 3, 10, 15, 0), at(2025, 3, 12, 11, 0)),
	}
	g := BuildYear(day(2025, 6, 1), bookings, Options{})

	if g.Year != 2025 || len(g.Months) != 12 {
		t.Fatalf("expected 12 months of 2025, got %d of %d", len(g.Months), g.Year)
	}
	if g.Occupancy.TotalDays != 365 || g.Occupancy.OccupiedDays != 5 {
		t.Fatalf("expected 5/365 occupied days, got %+v", g.Occupancy)
	}

	jan := g.Months[0]
	if jan.Occupancy.OccupiedDays != 2 {
		t.Fatalf("expected 2 occupied January days, got %d", jan.Occupancy.OccupiedDays)
	}
	marked := 0
	for _, week := range jan.Weeks {
		for _, c := range week {
			if c.HasBooking {
				marked++
			}
		}
	}
	// Dec 30, Dec 31 (padding) and Jan 1, Jan 2.
	if marked != 4 {
		t.Fatalf("expected 4 marked cells in January grid, got %d", marked)
	}
	if g.Months[2].Occupancy.Percent != MonthOccupancy(bookings, day(2025, 3, 1)) {
		t.Fatalf("expected March mini month to agree with MonthOccupancy")
	}
}
