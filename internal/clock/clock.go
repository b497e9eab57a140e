// Package clock provides the reference instant handed to the availability
// core. Nothing below the transport layer reads the wall clock directly.
package clock

import (
	"fmt"
	"strings"
	"time"
)

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always reports At. Used for tests and FAKE_NOW.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// FromConfig returns System unless fakeNow holds an RFC3339 instant.
func FromConfig(fakeNow string) (Clock, error) {
	fakeNow = strings.TrimSpace(fakeNow)
	if fakeNow == "" {
		return System{}, nil
	}
	at, err := time.Parse(time.RFC3339, fakeNow)
	if err != nil {
		return nil, fmt.Errorf("FAKE_NOW: %w", err)
	}
	return Fixed{At: at}, nil
}
