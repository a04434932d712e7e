package extract

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/enhance-goodreads-export/models"
)

// maxGenres caps how many tags survive filtering.
const maxGenres = 20

// ignoreGenres are administrative shelf names that say nothing about a
// book's genre. Compared against the normalized, lowercased tag name.
var ignoreGenres = map[string]struct{}{
	"to read":            {},
	"currently reading":  {},
	"owned":              {},
	"owned books":        {},
	"books i own":        {},
	"default":            {},
	"favorites":          {},
	"favourites":         {},
	"all time favorites": {},
	"my books":           {},
	"my library":         {},
	"library":            {},
	"wish list":          {},
	"to buy":             {},
	"re read":            {},
	"general":            {},
	"kindle":             {},
	"ebook":              {},
	"ebooks":             {},
	"audiobook":          {},
	"audiobooks":         {},
	"audio":              {},
	"abandoned":          {},
	"did not finish":     {},
	"dnf":                {},
}

// ignoreGenreSubstrings mark shelf names describing ownership or reading
// status rather than genre.
var ignoreGenreSubstrings = []string{
	"favorite",
	"favourite",
	"to read",
	"currently reading",
	"wishlist",
	"wish list",
	"book club",
	"bookclub",
	"read in ",
	"my shelf",
	"bookshelf",
	"tbr",
	"audible",
	"kindle",
	"library",
}

// FilterOptions are the vote thresholds for genre filtering. Nil fields
// disable the corresponding threshold.
type FilterOptions struct {
	MinVotes        *int
	MinVoteFraction *float64
}

// Genres extracts the community shelf tags from a book's shelves page,
// ranked by votes and filtered down to real genres.
func Genres(doc *goquery.Document, author string, opts FilterOptions) []models.GenreTag {
	var tags []models.GenreTag
	doc.Find(".shelfStat").Each(func(_ int, stat *goquery.Selection) {
		var lines []string
		for _, line := range strings.Split(stat.Text(), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) != 2 {
			return
		}
		votes, ok := digitsToInt(lines[1])
		if !ok {
			slog.Debug("shelf entry without a vote count", slog.String("name", lines[0]))
			return
		}
		tags = append(tags, models.GenreTag{Name: lines[0], Votes: votes})
	})
	return FilterGenres(tags, author, opts)
}

// FilterGenres ranks raw shelf tags by descending vote count (stable on
// ties), normalizes their names, drops non-genre shelves, applies the
// configured vote thresholds, and truncates to the top entries. Filtering
// an already filtered list is a no-op.
func FilterGenres(tags []models.GenreTag, author string, opts FilterOptions) []models.GenreTag {
	ranked := make([]models.GenreTag, len(tags))
	copy(ranked, tags)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Votes > ranked[j].Votes
	})
	for i := range ranked {
		ranked[i].Name = titleCase(strings.ReplaceAll(ranked[i].Name, "-", " "))
	}

	authorTokens := authorNameTokens(author)
	seen := make(map[string]struct{}, len(ranked))
	kept := ranked[:0]
	for _, tag := range ranked {
		if _, dup := seen[tag.Name]; dup {
			continue
		}
		if validGenre(tag.Name, authorTokens) {
			seen[tag.Name] = struct{}{}
			kept = append(kept, tag)
		}
	}

	// The vote thresholds are relative to the valid tags only, so the
	// fraction is not skewed by heavily voted administrative shelves.
	maxVotes := 0
	for _, tag := range kept {
		if tag.Votes > maxVotes {
			maxVotes = tag.Votes
		}
	}
	filtered := kept[:0]
	for _, tag := range kept {
		if opts.MinVotes != nil && tag.Votes <= *opts.MinVotes {
			continue
		}
		if opts.MinVoteFraction != nil && float64(tag.Votes) < *opts.MinVoteFraction*float64(maxVotes) {
			continue
		}
		filtered = append(filtered, tag)
	}

	if len(filtered) > maxGenres {
		filtered = filtered[:maxGenres]
	}
	return filtered
}

func validGenre(name string, authorTokens []string) bool {
	lowered := strings.ToLower(name)
	if _, ok := ignoreGenres[lowered]; ok {
		return false
	}
	for _, noise := range ignoreGenreSubstrings {
		if strings.Contains(lowered, noise) {
			return false
		}
	}
	// Suppress self-referential shelves like "rowling box set".
	for _, token := range authorTokens {
		if strings.Contains(lowered, token) {
			return false
		}
	}
	if isNumeric(lowered) {
		return false
	}
	return true
}

var authorTokenPattern = regexp.MustCompile(`^\w{3,}`)

// authorNameTokens returns the lowercased leading word-character runs, three
// characters or longer, of each part of the author's name.
func authorNameTokens(author string) []string {
	var tokens []string
	for _, part := range strings.Fields(author) {
		if m := authorTokenPattern.FindString(part); m != "" {
			tokens = append(tokens, strings.ToLower(m))
		}
	}
	return tokens
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func digitsToInt(s string) (int, bool) {
	n, any := 0, false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			any = true
		}
	}
	return n, any
}

// titleCase uppercases the first letter of every word and lowercases the
// rest, matching how the historical exports rendered genre names.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
