package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/enhance-goodreads-export/models"
)

func parseTestPage(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func sessionRow(startDay, startMonth, startYear, endDay, endMonth, endYear string) string {
	side := func(name, day, month, year string) string {
		var b strings.Builder
		for _, part := range []struct{ class, text string }{
			{name + "Day", day},
			{name + "Month", month},
			{name + "Year", year},
		} {
			b.WriteString(`<select class="` + part.class + `">`)
			if part.text != "" {
				b.WriteString(`<option class="setDate" selected="selected">` + part.text + `</option>`)
			}
			b.WriteString(`</select>`)
		}
		return b.String()
	}
	return `<div class="readingSessionRow">` +
		side("start", startDay, startMonth, startYear) +
		side("end", endDay, endMonth, endYear) +
		`</div>`
}

func TestReadingIntervalsSessionRows(t *testing.T) {
	// Rows listed newest-first, as the site renders them.
	html := `<html><body>` +
		sessionRow("1", "March", "2021", "9", "April", "2021") +
		sessionRow("4", "July", "2019", "20", "July", "2019") +
		sessionRow("", "", "", "", "", "") + // never started
		sessionRow("2", "May", "2022", "", "", "") + // still reading
		`</body></html>`

	intervals := ReadingIntervals(parseTestPage(t, html))
	if len(intervals) != 2 {
		t.Fatalf("intervals = %d, want 2", len(intervals))
	}
	if got := models.SerializeIntervals(intervals); got != "2019-07-04,2019-07-20;2021-03-01,2021-04-09" {
		t.Errorf("serialized intervals = %q", got)
	}
}

func TestReadingIntervalsSessionRowWithoutStart(t *testing.T) {
	html := `<html><body>` + sessionRow("", "", "", "15", "June", "2020") + `</body></html>`

	intervals := ReadingIntervals(parseTestPage(t, html))
	if len(intervals) != 1 {
		t.Fatalf("intervals = %d, want 1", len(intervals))
	}
	if intervals[0].HasStart() {
		t.Errorf("start = %v, want unknown", intervals[0].Start)
	}
	if want := time.Date(2020, time.June, 15, 0, 0, 0, 0, time.UTC); !intervals[0].End.Equal(want) {
		t.Errorf("end = %v, want %v", intervals[0].End, want)
	}
}

func TestReadingIntervalsTimelineFallback(t *testing.T) {
	entry := func(lines ...string) string {
		return `<div class="readingTimeline__text">` + strings.Join(lines, "\n") + `</div>`
	}
	// Newest entries first, mirroring the page.
	html := `<html><body><div class="readingTimeline">` +
		entry("March 12, 2020", "Finished Reading") +
		entry("February 1, 2020", "Started Reading") +
		entry("June 5, 2019", "Finished Reading") +
		entry("January 1, 2019", "Shelved as: to-read") +
		`</div></body></html>`

	intervals := ReadingIntervals(parseTestPage(t, html))
	if got := models.SerializeIntervals(intervals); got != ",2019-06-05;2020-02-01,2020-03-12" {
		t.Errorf("serialized intervals = %q", got)
	}
}

func TestReadingIntervalsEmptyPage(t *testing.T) {
	if got := ReadingIntervals(parseTestPage(t, "<html><body></body></html>")); len(got) != 0 {
		t.Errorf("intervals = %v, want none", got)
	}
}

func TestPairTimelineEvents(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		name     string
		events   []timelineEvent
		expected []models.ReadingInterval
	}{
		{
			name: "simple pair",
			events: []timelineEvent{
				{started: true, date: date(2020, time.February, 1)},
				{started: false, date: date(2020, time.March, 12)},
			},
			expected: []models.ReadingInterval{
				{Start: date(2020, time.February, 1), End: date(2020, time.March, 12)},
			},
		},
		{
			name: "finish without start",
			events: []timelineEvent{
				{started: false, date: date(2019, time.June, 5)},
			},
			expected: []models.ReadingInterval{
				{End: date(2019, time.June, 5)},
			},
		},
		{
			name: "start without finish is dropped",
			events: []timelineEvent{
				{started: true, date: date(2020, time.February, 1)},
			},
			expected: nil,
		},
		{
			name: "rereads pair independently",
			events: []timelineEvent{
				{started: true, date: date(2019, time.January, 1)},
				{started: false, date: date(2019, time.February, 1)},
				{started: true, date: date(2020, time.January, 1)},
				{started: false, date: date(2020, time.February, 1)},
			},
			expected: []models.ReadingInterval{
				{Start: date(2019, time.January, 1), End: date(2019, time.February, 1)},
				{Start: date(2020, time.January, 1), End: date(2020, time.February, 1)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pairTimelineEvents(tt.events)
			if len(got) != len(tt.expected) {
				t.Fatalf("intervals = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if !got[i].Start.Equal(tt.expected[i].Start) || !got[i].End.Equal(tt.expected[i].End) {
					t.Errorf("interval %d = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}
