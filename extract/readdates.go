// Package extract pulls structured data out of the site's book pages. All
// markup-shape assumptions (class names, element ids, embedded JSON keys)
// live here so a site redesign only touches this package.
package extract

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/enhance-goodreads-export/models"
)

// ErrExtraction indicates an expected markup element was absent.
type ErrExtraction struct {
	Err error
}

func (e ErrExtraction) Error() string {
	return fmt.Errorf("extraction: %w", e.Err).Error()
}

func (e ErrExtraction) Unwrap() error {
	return e.Err
}

// ReadingIntervals extracts the reading sessions from a book's activity
// page, sorted by completion date ascending. The current markup exposes one
// row per session; the old flat timeline is kept as a fallback for pages
// that still serve it. A page with neither shape yields an empty result,
// not an error.
func ReadingIntervals(doc *goquery.Document) []models.ReadingInterval {
	rows := doc.Find(".readingSessionRow")
	if rows.Length() > 0 {
		return sessionRowIntervals(rows)
	}
	timeline := doc.Find(".readingTimeline")
	if timeline.Length() > 0 {
		return timelineIntervals(timeline)
	}
	slog.Debug("no reading sessions found on activity page")
	return nil
}

var datePartSuffixes = [...]string{"Day", "Month", "Year"}

func sessionRowIntervals(rows *goquery.Selection) []models.ReadingInterval {
	var intervals []models.ReadingInterval
	rows.Each(func(_ int, row *goquery.Selection) {
		start, _ := selectedDate(row, "start")
		end, ok := selectedDate(row, "end")
		if !ok {
			// A session without a completion date is still in
			// progress and is not recorded.
			return
		}
		intervals = append(intervals, models.ReadingInterval{Start: start, End: end})
	})
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].End.Before(intervals[j].End)
	})
	return intervals
}

// selectedDate concatenates the selected day/month/year field texts for one
// side of a session row and parses the result. Missing components fall back
// to the 1900-01-01 reference date; a fully empty side means no date.
func selectedDate(row *goquery.Selection, side string) (time.Time, bool) {
	var b strings.Builder
	for _, part := range datePartSuffixes {
		sel := row.Find("." + side + part + " .setDate[selected=selected]")
		if sel.Length() > 0 {
			b.WriteString(strings.TrimSpace(sel.First().Text()))
		}
	}
	if b.Len() == 0 {
		return time.Time{}, false
	}
	parsed, err := parseLooseDate(b.String())
	if err != nil {
		slog.Debug("skipping unparseable session date", slog.String("text", b.String()))
		return time.Time{}, false
	}
	return parsed, true
}

type timelineEvent struct {
	started bool // false for a finish event
	date    time.Time
}

// timelineIntervals handles the deprecated flat timeline markup: text
// entries carrying "Started Reading"/"Finished Reading" markers next to a
// date, listed most-recent-first.
func timelineIntervals(timeline *goquery.Selection) []models.ReadingInterval {
	var events []timelineEvent
	timeline.Find(".readingTimeline__text").Each(func(_ int, entry *goquery.Selection) {
		var started, marked, dated bool
		var date time.Time
		for _, line := range strings.Split(entry.Text(), "\n") {
			switch {
			case strings.Contains(line, "Finished Reading"):
				started, marked = false, true
			case strings.Contains(line, "Started Reading"):
				started, marked = true, true
			default:
				if parsed, err := parseLooseDate(line); err == nil {
					date, dated = parsed, true
				}
			}
		}
		if marked && dated {
			events = append(events, timelineEvent{started: started, date: date})
		}
	})

	// The timeline lists newest entries first; pairing needs oldest-first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return pairTimelineEvents(events)
}

// pairTimelineEvents scans oldest-first events, pairing each finish with
// the pending start. A finish without a preceding start yields an interval
// with an unknown start date.
func pairTimelineEvents(events []timelineEvent) []models.ReadingInterval {
	var intervals []models.ReadingInterval
	var pendingStart time.Time
	for _, ev := range events {
		if ev.started {
			pendingStart = ev.date
			continue
		}
		intervals = append(intervals, models.ReadingInterval{Start: pendingStart, End: ev.date})
		pendingStart = time.Time{}
	}
	return intervals
}
