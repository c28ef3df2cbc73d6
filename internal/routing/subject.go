package routing

import (
	"strings"
	"sync/atomic"
)

// Subject holds the serial number the caller is currently tracking.
// Handlers read it at delivery time, never from a captured copy.
type Subject struct {
	v atomic.Pointer[string]
}

func NewSubject(initial string) *Subject {
	s := &Subject{}
	s.Set(initial)
	return s
}

// Set replaces the tracked serial. Surrounding whitespace is dropped.
func (s *Subject) Set(serial string) {
	trimmed := strings.TrimSpace(serial)
	s.v.Store(&trimmed)
}

func (s *Subject) Get() string {
	p := s.v.Load()
	if p == nil {
		return ""
	}
	return *p
}

// Matches reports whether key equals the current subject after trimming.
// Comparison is case-sensitive and an empty subject matches nothing.
func (s *Subject) Matches(key string) bool {
	current := s.Get()
	if current == "" {
		return false
	}
	return strings.TrimSpace(key) == current
}
