// Package session provides the trading session cutover clock: a fixed
// wall-clock deadline in a named time zone after which no new entries are
// taken for the remainder of the session.
package session

import (
	"fmt"
	"time"
)

// CutoverLayout is the wall-clock format for the configured deadline.
const CutoverLayout = "2006-01-02 15:04"

// Cutover is a session deadline. The zero value (no deadline) never expires.
type Cutover struct {
	deadline time.Time
	enabled  bool
}

// Parse builds a Cutover from a "2006-01-02 15:04" wall-clock value in the
// named time zone (e.g. "America/New_York"). An empty value disables the
// cutover.
func Parse(value, tz string) (Cutover, error) {
	if value == "" {
		return Cutover{}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Cutover{}, fmt.Errorf("session: load zone %q: %w", tz, err)
	}
	deadline, err := time.ParseInLocation(CutoverLayout, value, loc)
	if err != nil {
		return Cutover{}, fmt.Errorf("session: parse cutover %q: %w", value, err)
	}
	return Cutover{deadline: deadline, enabled: true}, nil
}

// Expired reports whether t has reached the cutover deadline.
func (c Cutover) Expired(t time.Time) bool {
	return c.enabled && !t.Before(c.deadline)
}

// Enabled reports whether a deadline is configured.
func (c Cutover) Enabled() bool {
	return c.enabled
}

// Deadline returns the configured deadline (zero when disabled).
func (c Cutover) Deadline() time.Time {
	return c.deadline
}

// Remaining returns the time left until cutover, or 0 once expired.
func (c Cutover) Remaining(t time.Time) time.Duration {
	if !c.enabled {
		return 0
	}
	d := c.deadline.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}
