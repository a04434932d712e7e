package extract

import (
	"strings"
	"testing"

	"github.com/aluiziolira/enhance-goodreads-export/models"
)

func shelfStat(name, votes string) string {
	return `<div class="shelfStat">
		` + name + `
		` + votes + `
	</div>`
}

func TestGenresRankingAndFiltering(t *testing.T) {
	html := `<html><body>` +
		shelfStat("to-read", "5,000 people") +
		shelfStat("fantasy", "1,200 people") +
		shelfStat("epic-fantasy", "300 people") +
		shelfStat("scifi", "90 people") +
		shelfStat("tolkien-collection", "80 people") +
		shelfStat("2019", "40 people") +
		shelfStat("my-bookshelf", "35 people") +
		shelfStat("no votes here", "") +
		`</body></html>`

	tags := Genres(parseTestPage(t, html), "J.R.R. Tolkien", FilterOptions{})
	if got := models.SerializeGenres(tags); got != "Fantasy|1200;Epic Fantasy|300;Scifi|90" {
		t.Errorf("serialized genres = %q", got)
	}
}

func TestFilterGenresVoteThresholds(t *testing.T) {
	raw := []models.GenreTag{
		{Name: "fantasy", Votes: 1200},
		{Name: "epic-fantasy", Votes: 300},
		{Name: "scifi", Votes: 90},
	}
	minVotes := func(n int) *int { return &n }
	minFraction := func(f float64) *float64 { return &f }

	tests := []struct {
		name     string
		opts     FilterOptions
		expected string
	}{
		{
			name:     "absolute threshold is exclusive",
			opts:     FilterOptions{MinVotes: minVotes(300)},
			expected: "Fantasy|1200",
		},
		{
			name:     "relative threshold is inclusive",
			opts:     FilterOptions{MinVoteFraction: minFraction(0.25)},
			expected: "Fantasy|1200;Epic Fantasy|300",
		},
		{
			name:     "no thresholds",
			opts:     FilterOptions{},
			expected: "Fantasy|1200;Epic Fantasy|300;Scifi|90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.SerializeGenres(FilterGenres(raw, "", tt.opts))
			if got != tt.expected {
				t.Errorf("genres = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFilterGenresIdempotent(t *testing.T) {
	raw := []models.GenreTag{
		{Name: "to-read", Votes: 5000},
		{Name: "fantasy", Votes: 1200},
		{Name: "scifi", Votes: 90},
	}
	opts := FilterOptions{}

	once := FilterGenres(raw, "Jane Doe", opts)
	twice := FilterGenres(once, "Jane Doe", opts)
	if models.SerializeGenres(once) != models.SerializeGenres(twice) {
		t.Errorf("second pass changed the result: %q vs %q",
			models.SerializeGenres(once), models.SerializeGenres(twice))
	}
}

func TestFilterGenresDeduplicatesNames(t *testing.T) {
	raw := []models.GenreTag{
		{Name: "sci-fi", Votes: 90},
		{Name: "sci fi", Votes: 40},
	}
	got := models.SerializeGenres(FilterGenres(raw, "", FilterOptions{}))
	if got != "Sci Fi|90" {
		t.Errorf("genres = %q, want the higher-voted duplicate only", got)
	}
}

func TestFilterGenresTruncates(t *testing.T) {
	var raw []models.GenreTag
	for i := 0; i < 30; i++ {
		raw = append(raw, models.GenreTag{Name: "genre" + strings.Repeat("x", i+1), Votes: 100 - i})
	}
	if got := len(FilterGenres(raw, "", FilterOptions{})); got != maxGenres {
		t.Errorf("kept %d genres, want %d", got, maxGenres)
	}
}

func TestValidGenre(t *testing.T) {
	tests := []struct {
		name     string
		genre    string
		author   string
		expected bool
	}{
		{name: "plain genre", genre: "Fantasy", expected: true},
		{name: "administrative shelf", genre: "To Read", expected: false},
		{name: "noise substring", genre: "Sci Fi Book Club", expected: false},
		{name: "author surname", genre: "Tolkien Box Set", author: "J.R.R. Tolkien", expected: false},
		{name: "author token case-insensitive", genre: "tolkien reread", author: "J.R.R. TOLKIEN", expected: false},
		{name: "short author initials ignored", genre: "Ya Fiction", author: "L. Ya Wang", expected: true},
		{name: "purely numeric", genre: "2019", expected: false},
		{name: "number inside name", genre: "20th Century", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validGenre(tt.genre, authorNameTokens(tt.author)); got != tt.expected {
				t.Errorf("validGenre(%q, author %q) = %v, want %v", tt.genre, tt.author, got, tt.expected)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "epic fantasy", expected: "Epic Fantasy"},
		{input: "SCIFI", expected: "Scifi"},
		{input: "20th century", expected: "20Th Century"},
		{input: "sci fi", expected: "Sci Fi"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		if got := titleCase(tt.input); got != tt.expected {
			t.Errorf("titleCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
