// Package system provides the wall-clock implementation of harvest.Clock.
package system

import "time"

// Clock returns real wall-clock time.
type Clock struct{}

// New constructs a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (*Clock) Now() time.Time {
	return time.Now().UTC()
}
