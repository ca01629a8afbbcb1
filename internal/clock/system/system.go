// Package system provides the wall clock used to stamp site records.
package system

import "time"

// Clock implements site.Clock using time.Now in UTC.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the precision
// the SQL stores keep.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
