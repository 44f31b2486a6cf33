package coerce

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Date format syntax
//
//	YYYY  four-digit year      YY  two-digit year
//	MMMM  full month name      MMM three-letter month name
//	MM    zero-padded month    M   month without padding
//	DD    zero-padded day      D   day without padding
//	HH    24-hour hour         mm  minute          ss  second
//
// Tokens are case-sensitive and matched longest first. Any other character
// must be punctuation, whitespace, or the letter 'T' and is matched
// literally. Dates are parsed in UTC.

var dateTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
	{"M", "1"},
	{"D", "2"},
}

var dateLayouts sync.Map // format string -> Go layout

func compileDateLayout(format string) (string, error) {
	if cached, ok := dateLayouts.Load(format); ok {
		return cached.(string), nil
	}
	if strings.TrimSpace(format) == "" {
		return "", fmt.Errorf("%w: empty date format", ErrInvalidFormat)
	}

	var b strings.Builder
	sawToken := false
	for i := 0; i < len(format); {
		matched := false
		for _, dt := range dateTokens {
			if strings.HasPrefix(format[i:], dt.token) {
				b.WriteString(dt.layout)
				i += len(dt.token)
				matched, sawToken = true, true
				break
			}
		}
		if matched {
			continue
		}

		c := format[i]
		if !isDateLiteral(c) {
			return "", fmt.Errorf("%w: date format %q: unexpected %q at offset %d", ErrInvalidFormat, format, c, i)
		}
		b.WriteByte(c)
		i++
	}
	if !sawToken {
		return "", fmt.Errorf("%w: date format %q has no date tokens", ErrInvalidFormat, format)
	}

	layout := b.String()
	dateLayouts.Store(format, layout)
	return layout, nil
}

// isDateLiteral reports whether c can appear literally in a Go layout
// without being read as part of a reference-time element.
func isDateLiteral(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return false
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return c == 'T'
	default:
		return c != '_'
	}
}

// ParseDate parses s using format.
func ParseDate(s, format string) (time.Time, error) {
	layout, err := compileDateLayout(format)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrDateParse, format, err)
	}
	return t, nil
}

// FormatDate renders t in format.
func FormatDate(t time.Time, format string) (string, error) {
	layout, err := compileDateLayout(format)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}
