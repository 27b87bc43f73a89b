// Package timeutil provides the date handling used by grade-hub ingestion:
// Italian exam-platform timestamps, form timestamps, and the dd/mm/yyyy
// session keys they normalize to. All times are interpreted in Europe/Rome.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RomeTZ is the course timezone. Falls back to CET when tzdata is missing.
var RomeTZ = loadRome()

func loadRome() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.FixedZone("CET", 1*60*60)
	}
	return loc
}

// Common date formats.
const (
	// SessionDate is the canonical written-session key layout.
	SessionDate = "02/01/2006"
	// FormTimestamp is the layout of spreadsheet form exports.
	FormTimestamp = "2/1/2006 15:04:05"
)

var italianMonths = map[string]time.Month{
	"gennaio":   time.January,
	"febbraio":  time.February,
	"marzo":     time.March,
	"aprile":    time.April,
	"maggio":    time.May,
	"giugno":    time.June,
	"luglio":    time.July,
	"agosto":    time.August,
	"settembre": time.September,
	"ottobre":   time.October,
	"novembre":  time.November,
	"dicembre":  time.December,
}

// MonthNameIt returns the Italian (lowercase) name for a month.
func MonthNameIt(m time.Month) string {
	for name, month := range italianMonths {
		if month == m {
			return name
		}
	}
	return ""
}

// ParseItalianDateTime parses exam-platform timestamps such as
// "8 settembre 2023  09:40". Runs of whitespace are tolerated.
func ParseItalianDateTime(value string) (time.Time, error) {
	parts := strings.Fields(value)
	if len(parts) != 3 && len(parts) != 4 {
		return time.Time{}, fmt.Errorf("timeutil: unexpected date %q", value)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("timeutil: bad day in %q", value)
	}
	month, ok := italianMonths[strings.ToLower(parts[1])]
	if !ok {
		return time.Time{}, fmt.Errorf("timeutil: unknown month %q", parts[1])
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: bad year in %q", value)
	}

	hour, minute := 0, 0
	if len(parts) == 4 {
		clock, err := time.Parse("15:04", parts[3])
		if err != nil {
			return time.Time{}, fmt.Errorf("timeutil: bad time in %q: %w", value, err)
		}
		hour, minute = clock.Hour(), clock.Minute()
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, RomeTZ)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("timeutil: %d %s %d does not exist", day, parts[1], year)
	}
	return t, nil
}

// ExamDate normalizes an exam-platform timestamp to a session key:
// "8 settembre 2023  09:40" -> "08/09/2023".
func ExamDate(value string) (string, error) {
	t, err := ParseItalianDateTime(value)
	if err != nil {
		return "", err
	}
	return t.Format(SessionDate), nil
}

// FormDate normalizes a form export timestamp to a session key:
// "1/3/2024 10:00:00" -> "01/03/2024". A bare date is accepted too.
func FormDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(FormTimestamp, value, RomeTZ); err == nil {
		return t.Format(SessionDate), nil
	}
	t, err := time.ParseInLocation("2/1/2006", value, RomeTZ)
	if err != nil {
		return "", fmt.Errorf("timeutil: unexpected form timestamp %q", value)
	}
	return t.Format(SessionDate), nil
}

// ParseSessionDate parses a dd/mm/yyyy session key.
func ParseSessionDate(value string) (time.Time, error) {
	return time.ParseInLocation(SessionDate, strings.TrimSpace(value), RomeTZ)
}
