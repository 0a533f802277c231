package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Cell parsers for scalar fields. Each takes a cell that has already been
// through CleanCell and reports ok=false when the text is not a value of
// its type; empty cells never reach them.

var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// TwoDigitYearPivot is how many years into the future a two-digit year may
// land before it is read as last century instead.
var TwoDigitYearPivot = 20

// DateLayout is the form dates are stored and exported in.
const DateLayout = "2006-01-02"

var (
	fullYearLayouts = []string{
		DateLayout, "2006/01/02", "2006.01.02", "20060102",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
		time.RFC3339,
	}
	shortYearLayouts = []string{"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06"}
)

// ParseNumber reads a decimal number, tolerating currency symbols,
// thousands separators and accounting negatives such as "($1,200.50)".
// Numbers go through pgtype.Numeric so that values the database would
// reject are rejected here too.
func ParseNumber(s string) (float64, bool) {
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, s)
	if negative {
		s = "-" + s
	}
	if !numberPattern.MatchString(s) {
		return 0, false
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return 0, false
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0, false
	}
	return f.Float64, true
}

// ParseDate reads a calendar date in any of the common layouts. Four-digit
// years are tried first; a two-digit year is placed in the century that
// keeps it within TwoDigitYearPivot years of now.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range fullYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range shortYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, on/off, their initials and 1/0,
// in any case.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "on", "1":
		return true, true
	case "false", "f", "no", "n", "off", "0":
		return false, true
	}
	return false, false
}

// CleanCell trims a cell and strips spreadsheet artifacts: a formula
// prefix (="0042" or =42) and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
