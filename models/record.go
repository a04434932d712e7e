// Package models defines data structures shared by the enhancement pipeline.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Column names of the fields this tool derives and appends to the export.
const (
	ColReadDates = "read_dates"
	ColGenres    = "genres"
	ColNRatings  = "n_ratings"
)

// Column names the export is required to carry.
const (
	ColBookID         = "Book Id"
	ColTitle          = "Title"
	ColAuthor         = "Author"
	ColDateRead       = "Date Read"
	ColExclusiveShelf = "Exclusive Shelf"
)

// State tracks where a record is in the enrichment pipeline.
type State int

const (
	StatePending State = iota
	StateCarriedForward
	StateFetching
	StateEnriched
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCarriedForward:
		return "carried_forward"
	case StateFetching:
		return "fetching"
	case StateEnriched:
		return "enriched"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is one row of the export. Source columns are preserved untouched;
// the derived columns are the only ones this tool writes.
type Record struct {
	Fields map[string]string
	State  State
}

// NewRecord builds a record from parallel header/value slices.
func NewRecord(header, values []string) *Record {
	fields := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(values) {
			fields[col] = values[i]
		} else {
			fields[col] = ""
		}
	}
	return &Record{Fields: fields}
}

func (r *Record) Get(col string) string {
	return r.Fields[col]
}

func (r *Record) Set(col, value string) {
	r.Fields[col] = value
}

func (r *Record) BookID() string { return r.Fields[ColBookID] }
func (r *Record) Title() string  { return r.Fields[ColTitle] }
func (r *Record) Author() string { return r.Fields[ColAuthor] }

// Unchanged reports whether r and old describe the same reading state,
// which makes old's derived fields safe to carry forward.
func (r *Record) Unchanged(old *Record) bool {
	return old != nil &&
		r.Get(ColExclusiveShelf) == old.Get(ColExclusiveShelf) &&
		r.Get(ColDateRead) == old.Get(ColDateRead)
}

// NeedsEnrichment reports whether the record lacks every derived field.
func (r *Record) NeedsEnrichment() bool {
	return r.Get(ColGenres) == "" && r.Get(ColReadDates) == "" && r.Get(ColNRatings) == ""
}

// ReadingInterval is one read-through of a book. Start may be zero
// (unknown); End is always set, intervals without a completion are not
// recorded.
type ReadingInterval struct {
	Start time.Time // zero when the start date is unknown
	End   time.Time
}

// HasStart reports whether the start date is known.
func (ri ReadingInterval) HasStart() bool {
	return !ri.Start.IsZero()
}

const intervalDateLayout = "2006-01-02"

// SerializeIntervals renders intervals as "start,end" pairs joined by ";",
// with an empty start slot when the start date is unknown.
func SerializeIntervals(intervals []ReadingInterval) string {
	parts := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		start := ""
		if iv.HasStart() {
			start = iv.Start.Format(intervalDateLayout)
		}
		parts = append(parts, start+","+iv.End.Format(intervalDateLayout))
	}
	return strings.Join(parts, ";")
}

// GenreTag is a community shelf label with its vote count.
type GenreTag struct {
	Name  string
	Votes int
}

// SerializeGenres renders tags as "name|count" groups joined by ";". The
// name slot is a comma-joined list to stay compatible with the nested
// taxonomy the site once exposed; today every group holds a single name.
func SerializeGenres(tags []GenreTag) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, tag.Name+"|"+strconv.Itoa(tag.Votes))
	}
	return strings.Join(parts, ";")
}
