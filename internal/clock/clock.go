// Package clock converts between absolute instants and a scope's local civil
// time. Every date comparison in the iteration engine goes through these
// helpers with the scope's IANA zone as an explicit argument, so "current
// iteration" is the same for every viewer of a scope regardless of where the
// request came from.
package clock

import (
	"fmt"
	"time"
)

// LocalNow returns the given instant shifted into the scope's zone. Callers
// sample time.Now() once and pass it in so related conversions in one request
// agree on the instant.
func LocalNow(now time.Time, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return now.In(loc), nil
}

// ToUTC interprets a bare civil date in the scope's zone and returns the
// corresponding UTC instant. With endOfDay false the date is floored to local
// midnight; with endOfDay true it becomes 23:59:59.999999 local, so a
// date-only upper bound covers the whole final day.
func ToUTC(year int, month time.Month, day int, tz string, endOfDay bool) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	if endOfDay {
		return time.Date(year, month, day, 23, 59, 59, 999999000, loc).UTC(), nil
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc).UTC(), nil
}

// DateToUTC is ToUTC for callers that already hold the date as a time.Time.
// Only the year/month/day of d are used; its zone and clock time are ignored.
func DateToUTC(d time.Time, tz string, endOfDay bool) (time.Time, error) {
	return ToUTC(d.Year(), d.Month(), d.Day(), tz, endOfDay)
}

// MostRecentMonday returns the most recent Monday on or before the given
// instant, as a local midnight instant in the scope's zone converted to UTC.
// Used as the one-time default anchor when a scope is first provisioned.
func MostRecentMonday(now time.Time, tz string) (time.Time, error) {
	local, err := LocalNow(now, tz)
	if err != nil {
		return time.Time{}, err
	}
	// Weekday() has Sunday=0; shift so Monday=0.
	back := (int(local.Weekday()) + 6) % 7
	monday := local.AddDate(0, 0, -back)
	return ToUTC(monday.Year(), monday.Month(), monday.Day(), tz, false)
}
