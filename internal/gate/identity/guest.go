// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"sync"
	"time"
)

// GuestTracker enforces the per-address minimum interval between guest
// logins. It is shared by all connections and serializes the check-and-set
// per call, so two near-simultaneous guest logins from one address cannot
// both pass.
type GuestTracker struct {
	delay time.Duration
	now   func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewGuestTracker creates a tracker enforcing the given minimum interval.
func NewGuestTracker(delay time.Duration) *GuestTracker {
	return NewGuestTrackerWithClock(delay, time.Now)
}

// NewGuestTrackerWithClock creates a tracker with an injected clock.
func NewGuestTrackerWithClock(delay time.Duration, now func() time.Time) *GuestTracker {
	return &GuestTracker{
		delay: delay,
		now:   now,
		last:  make(map[string]time.Time),
	}
}

/*
Reserve atomically claims a guest-login slot for the address.

Description: If the address logged in as a guest within the interval, the
claim fails and the remaining wait is returned. Otherwise the current time
is recorded immediately, under the lock, so a concurrent claim from the
same address sees it. Callers that later reject the login for another
reason must call [GuestTracker.Release] to give the slot back.

Parameters:
  - address: Remote address of the connection

Returns:
  - time.Duration: Remaining wait when the claim fails, zero otherwise
  - bool: true when the slot was claimed
*/
func (tracker *GuestTracker) Reserve(address string) (time.Duration, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	current := tracker.now()
	if previous, seen := tracker.last[address]; seen {
		elapsed := current.Sub(previous)
		if elapsed < tracker.delay {
			return tracker.delay - elapsed, false
		}
	}

	tracker.last[address] = current
	return 0, true
}

// Release gives back a slot claimed by [GuestTracker.Reserve] when the
// login was rejected for a non-rate reason. The address may immediately
// try again; any timestamp it held before the claim was already outside
// the interval.
func (tracker *GuestTracker) Release(address string) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	delete(tracker.last, address)
}
