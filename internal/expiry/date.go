package expiry

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

var (
	// ErrEndDate is returned when an entitlement end date is missing or does
	// not parse as an ISO-8601 date.
	ErrEndDate = errors.New("missing or unparsable end date")
)

// ReminderDate returns the date a reminder event is scheduled for a contract
// ending on end: one day before the end date, moved back to the preceding
// Friday when that day lands on a weekend. The string form is the canonical
// YYYY-MM-DD encoding of the returned date.
func ReminderDate(end time.Time) (time.Time, string) {
	day := midnight(end).AddDate(0, 0, -1)

	switch day.Weekday() {
	case time.Saturday:
		day = day.AddDate(0, 0, -1)
	case time.Sunday:
		day = day.AddDate(0, 0, -2)
	}

	return day, day.Format(dateLayout)
}

// ParseEndDate parses an entitlement end date, discarding any time component
// in the source encoding.
func ParseEndDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.Wrap(ErrEndDate, "empty value")
	}

	datePart, _, _ := strings.Cut(raw, "T")

	t, err := time.ParseInLocation(dateLayout, datePart, time.Local)
	if err != nil {
		return time.Time{}, errors.Wrap(ErrEndDate, raw)
	}

	return t, nil
}

// midnight truncates t to the start of its calendar day.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween returns the count of calendar days from a to b, both expected
// at midnight. The difference is rounded so a DST transition inside the span
// does not skew the count.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
