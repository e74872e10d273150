// Package clock supplies the local wall-clock time the coach reasons about.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

// System is the real clock, pinned to the user's timezone.
type System struct {
	Loc *time.Location
}

func NewSystem(tz string) (*System, error) {
	if tz == "" || strings.EqualFold(tz, "local") {
		return &System{Loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &System{Loc: loc}, nil
}

func (s *System) Now() time.Time {
	if s.Loc == nil {
		return time.Now()
	}
	return time.Now().In(s.Loc)
}

// Today returns the calendar date of c as YYYY-MM-DD.
func Today(c Clock) string {
	return c.Now().Format(DateLayout)
}

// TimeString formats t as a 24h HH:MM string.
func TimeString(t time.Time) string {
	return t.Format("15:04")
}

// MinuteOfDay returns minutes since local midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseHHMM parses a 24h "HH:MM" routine time into minutes since midnight.
func ParseHHMM(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// Manual is a settable clock used by tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
