package timeline

import (
	"strings"
	"time"

	"github.com/matzehuels/treereplay/pkg/errors"
)

// Speed is an autoplay rate.
type Speed string

const (
	SpeedSlow   Speed = "SLOW"
	SpeedMedium Speed = "MEDIUM"
	SpeedFast   Speed = "FAST"
)

// DefaultSpeed is the speed a new player starts with.
const DefaultSpeed = SpeedMedium

// Speeds lists all speeds from slowest to fastest.
var Speeds = []Speed{SpeedSlow, SpeedMedium, SpeedFast}

// Delay returns the time between two autoplay ticks.
func (s Speed) Delay() time.Duration {
	switch s {
	case SpeedSlow:
		return 3 * time.Second
	case SpeedFast:
		return time.Second
	default:
		return 2 * time.Second
	}
}

// Valid reports whether s is a known speed.
func (s Speed) Valid() bool {
	switch s {
	case SpeedSlow, SpeedMedium, SpeedFast:
		return true
	}
	return false
}

// Faster returns the next faster speed, or s if already the fastest.
func (s Speed) Faster() Speed {
	switch s {
	case SpeedSlow:
		return SpeedMedium
	default:
		return SpeedFast
	}
}

// Slower returns the next slower speed, or s if already the slowest.
func (s Speed) Slower() Speed {
	switch s {
	case SpeedFast:
		return SpeedMedium
	default:
		return SpeedSlow
	}
}

// ParseSpeed parses a speed name case-insensitively.
func ParseSpeed(s string) (Speed, error) {
	sp := Speed(strings.ToUpper(strings.TrimSpace(s)))
	if !sp.Valid() {
		return "", errors.New(errors.ErrCodeInvalidSpeed, "unknown speed %q (want SLOW, MEDIUM or FAST)", s)
	}
	return sp, nil
}
