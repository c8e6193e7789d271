package window

import (
	"fmt"
	"strings"
	"time"
)

// Moment-style tokens and their Go layout equivalents, longest first so that
// "YYYY" wins over "YY" and "MMMM" over "MM".
var patternTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{".SSS", ".000"},
	{",SSS", ",000"},
	{"MMM", "Jan"},
	{"ddd", "Mon"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"ZZ", "-0700"},
	{"M", "1"},
	{"D", "2"},
	{"H", "15"},
	{"h", "3"},
	{"m", "4"},
	{"s", "5"},
	{"A", "PM"},
	{"a", "pm"},
	{"Z", "-07:00"},
}

// Layouts tried when no pattern is supplied.
var defaultLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// layoutsFor returns the Go layouts a FORMATTED boundary is parsed with.
// Patterns that already contain the Go reference year are taken verbatim.
func layoutsFor(pattern string) ([]string, error) {
	switch {
	case strings.TrimSpace(pattern) == "":
		return defaultLayouts, nil
	case strings.Contains(pattern, "2006"):
		return []string{pattern}, nil
	}
	layout, err := Layout(pattern)
	if err != nil {
		return nil, err
	}
	return []string{layout}, nil
}

// Layout translates a moment-style pattern such as "YYYY-MM-DD HH:mm" into a
// Go time layout. Text inside square brackets is copied literally.
func Layout(pattern string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated literal in %q", ErrInvalidDateFormat, pattern)
			}
			b.WriteString(pattern[i+1 : i+end])
			i += end + 1
			continue
		}
		matched := false
		for _, t := range patternTokens {
			if strings.HasPrefix(pattern[i:], t.token) {
				b.WriteString(t.layout)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			c := pattern[i]
			if c >= '0' && c <= '9' {
				// Go would read a bare digit as a layout element.
				return "", fmt.Errorf("%w: literal digit in %q", ErrInvalidDateFormat, pattern)
			}
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}
