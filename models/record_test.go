package models

import (
	"testing"
	"time"
)

func TestNewRecordPadsShortRows(t *testing.T) {
	header := []string{ColBookID, ColTitle, ColAuthor}
	rec := NewRecord(header, []string{"1", "Dune"})

	if got := rec.BookID(); got != "1" {
		t.Errorf("book id = %q", got)
	}
	if got := rec.Author(); got != "" {
		t.Errorf("author = %q, want empty for a missing cell", got)
	}
}

func TestRecordUnchanged(t *testing.T) {
	header := []string{ColBookID, ColDateRead, ColExclusiveShelf}
	base := NewRecord(header, []string{"1", "2021/05/01", "read"})

	tests := []struct {
		name     string
		old      *Record
		expected bool
	}{
		{name: "identical", old: NewRecord(header, []string{"1", "2021/05/01", "read"}), expected: true},
		{name: "different shelf", old: NewRecord(header, []string{"1", "2021/05/01", "to-read"}), expected: false},
		{name: "different read date", old: NewRecord(header, []string{"1", "2022/01/01", "read"}), expected: false},
		{name: "no previous record", old: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Unchanged(tt.old); got != tt.expected {
				t.Errorf("Unchanged = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRecordNeedsEnrichment(t *testing.T) {
	rec := NewRecord([]string{ColBookID}, []string{"1"})
	if !rec.NeedsEnrichment() {
		t.Error("record without derived fields should need enrichment")
	}
	rec.Set(ColNRatings, "42")
	if rec.NeedsEnrichment() {
		t.Error("record with any derived field should not need enrichment")
	}
}

func TestSerializeIntervals(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		name      string
		intervals []ReadingInterval
		expected  string
	}{
		{name: "empty", intervals: nil, expected: ""},
		{
			name: "full interval",
			intervals: []ReadingInterval{
				{Start: date(2020, time.February, 1), End: date(2020, time.March, 12)},
			},
			expected: "2020-02-01,2020-03-12",
		},
		{
			name: "unknown start",
			intervals: []ReadingInterval{
				{End: date(2019, time.June, 5)},
			},
			expected: ",2019-06-05",
		},
		{
			name: "multiple reads",
			intervals: []ReadingInterval{
				{Start: date(2019, time.January, 1), End: date(2019, time.February, 1)},
				{Start: date(2020, time.January, 1), End: date(2020, time.February, 1)},
			},
			expected: "2019-01-01,2019-02-01;2020-01-01,2020-02-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SerializeIntervals(tt.intervals); got != tt.expected {
				t.Errorf("SerializeIntervals = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSerializeGenres(t *testing.T) {
	tags := []GenreTag{
		{Name: "Fantasy", Votes: 1200},
		{Name: "Epic Fantasy", Votes: 300},
	}
	if got := SerializeGenres(tags); got != "Fantasy|1200;Epic Fantasy|300" {
		t.Errorf("SerializeGenres = %q", got)
	}
	if got := SerializeGenres(nil); got != "" {
		t.Errorf("SerializeGenres(nil) = %q, want empty", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{state: StatePending, expected: "pending"},
		{state: StateCarriedForward, expected: "carried_forward"},
		{state: StateFetching, expected: "fetching"},
		{state: StateEnriched, expected: "enriched"},
		{state: StateFailed, expected: "failed"},
		{state: State(99), expected: "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}
