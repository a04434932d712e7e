package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var monthsByName = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthsByName[name] = m
		monthsByName[name[:3]] = m
	}
}

// parseLooseDate parses the loosely formatted dates the activity markup
// produces: concatenated select-box texts like "4July2019" or "July2019" as
// well as prose dates like "March 12, 2020". Missing components default to
// the 1900-01-01 reference date. Text with no recognizable date tokens, or
// with tokens that cannot belong to a date, is an error.
func parseLooseDate(text string) (time.Time, error) {
	day, month, year := 1, time.January, 1900
	var seenDay, seenMonth, seenYear bool

	for _, token := range dateTokens(text) {
		if token.numeric {
			switch {
			case len(token.text) == 4 && !seenYear:
				year, _ = strconv.Atoi(token.text)
				seenYear = true
			case len(token.text) <= 2 && !seenDay:
				n, _ := strconv.Atoi(token.text)
				if n < 1 || n > 31 {
					return time.Time{}, fmt.Errorf("%q is not a day of month", token.text)
				}
				day = n
				seenDay = true
			default:
				return time.Time{}, fmt.Errorf("unexpected number %q in date %q", token.text, text)
			}
			continue
		}
		m, ok := monthsByName[strings.ToLower(token.text)]
		if !ok || seenMonth {
			return time.Time{}, fmt.Errorf("unexpected word %q in date %q", token.text, text)
		}
		month = m
		seenMonth = true
	}

	if !seenDay && !seenMonth && !seenYear {
		return time.Time{}, fmt.Errorf("no date found in %q", text)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

type dateToken struct {
	text    string
	numeric bool
}

// dateTokens splits text into maximal runs of digits and letters, dropping
// punctuation and whitespace.
func dateTokens(text string) []dateToken {
	var tokens []dateToken
	var run strings.Builder
	var runNumeric bool

	flush := func() {
		if run.Len() > 0 {
			tokens = append(tokens, dateToken{text: run.String(), numeric: runNumeric})
			run.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			if run.Len() > 0 && !runNumeric {
				flush()
			}
			runNumeric = true
			run.WriteRune(r)
		case unicode.IsLetter(r):
			if run.Len() > 0 && runNumeric {
				flush()
			}
			runNumeric = false
			run.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
