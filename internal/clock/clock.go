// Package clock normalizes heterogeneous date strings into a single
// fixed timezone and derives one-shot trigger specs from them.
package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/sizif-22/eventy-back/pkg/errors"
)

// fallbackLayouts are tried in order when RFC 3339 parsing fails.
var fallbackLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
}

// Clock parses schedule dates and reads the current time in one fixed
// location. All scheduling decisions go through the same Clock so that
// past/future comparisons are consistent.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New loads the named timezone and returns a Clock pinned to it.
func New(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, fmt.Sprintf("load timezone %q", timezone))
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewFixed returns a Clock whose Now always reports the given instant.
// Test helper.
func NewFixed(timezone string, at time.Time) (*Clock, error) {
	c, err := New(timezone)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return at }
	return c, nil
}

// Location reports the Clock's fixed location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now reports the current instant in the Clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Parse interprets a date string in the Clock's location. RFC 3339 input
// keeps its own offset; all other accepted layouts are wall-clock times
// local to the Clock.
func (c *Clock) Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New(errors.CodeValidation, "date is required")
	}

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.In(c.loc), nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, c.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New(errors.CodeValidation, fmt.Sprintf("unparseable date %q", value))
}

// TriggerSpec renders the instant as a minute-precision one-shot spec in
// "m h dom mon" form. The year is intentionally absent, so the caller
// must disarm the trigger after its first firing. Cron entries only match
// whole minutes; an instant with a seconds remainder is rounded up to the
// next minute, otherwise a fire time seconds into the current minute would
// not match again until the following year.
func TriggerSpec(at time.Time) string {
	if at.Second() > 0 || at.Nanosecond() > 0 {
		at = at.Truncate(time.Minute).Add(time.Minute)
	}
	return fmt.Sprintf("%d %d %d %d", at.Minute(), at.Hour(), at.Day(), int(at.Month()))
}
