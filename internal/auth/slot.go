package auth

import (
	"sync"
	"time"
)

// slot is the state of one credential kind. All fields are guarded by mu.
type slot struct {
	kind Kind

	mu     sync.Mutex
	value  string
	secret string

	// timer is non-nil only while a renewal is scheduled; armID tags the
	// callback so a fired-but-superseded timer can recognise itself.
	timer Timer
	armID uint64
	// epoch is bumped whenever pending renewals must not re-arm: stop,
	// secret clearing and close.
	epoch uint64

	autoRenew   bool
	lastRenewal time.Time
	nextRenewal time.Time
	lastErr     error
	failures    int
}

func newSlot(kind Kind, value, secret string, autoRenew bool) *slot {
	return &slot{
		kind:      kind,
		value:     value,
		secret:    secret,
		autoRenew: autoRenew,
	}
}

func (s *slot) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.nextRenewal = time.Time{}
}

func (s *slot) stopLocked() {
	s.epoch++
	s.cancelLocked()
}

func (s *slot) status() SlotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SlotStatus{
		Kind:                s.kind.String(),
		HasToken:            s.value != "",
		TokenLength:         len(s.value),
		Renewable:           s.secret != "",
		AutoRenew:           s.autoRenew,
		Refreshing:          s.timer != nil,
		LastRenewal:         s.lastRenewal,
		NextRenewal:         s.nextRenewal,
		ConsecutiveFailures: s.failures,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
