// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package flood implements the per-connection, per-action flood detector.

Every privileged action a connection submits passes through a [Limiter]
before it reaches its handler. The detector tolerates a burst of two
(an accidental double-submission), then measures the empirical rate of the
burst and locks the action behind a fixed cooldown when the rate exceeds
the action's configured threshold.

# Concurrency

A Limiter is owned by exactly one connection and is driven from that
connection's single handler goroutine. It is deliberately unsynchronized;
sharing one Limiter across connections is a bug.
*/
package flood

import (
	"fmt"
	"time"
)

// CooldownDuration is the fixed lockout applied after a detected burst.
const CooldownDuration = 5 * time.Second

// burstTolerance is how many check-ins are allowed before a rate decision
// is made. Twice might be an accident, more than that is probably spam.
const burstTolerance = 2

// Verdict classifies the outcome of a flood check.
type Verdict int

const (
	// VerdictAllowed means the action may proceed.
	VerdictAllowed Verdict = iota

	// VerdictCoolingDown means a previously set cooldown is still active.
	VerdictCoolingDown

	// VerdictFlooded means this check-in tripped the rate threshold and a
	// fresh cooldown has just been set.
	VerdictFlooded
)

// Limiter tracks recent check-in timestamps and active cooldowns for each
// action name on a single connection.
type Limiter struct {
	now      func() time.Time
	samples  map[string][]time.Time
	cooldown map[string]time.Time
}

// NewLimiter creates a Limiter using the wall clock.
func NewLimiter() *Limiter {
	return NewLimiterWithClock(time.Now)
}

// NewLimiterWithClock creates a Limiter with an injected clock. Tests use
// this to drive the window deterministically.
func NewLimiterWithClock(now func() time.Time) *Limiter {
	return &Limiter{
		now:      now,
		samples:  make(map[string][]time.Time),
		cooldown: make(map[string]time.Time),
	}
}

/*
Check records a check-in for the named action and decides whether it must
be throttled against the supplied threshold in hertz.

Description: Implements a self-resetting sliding-window detector. The first
check-in for an action only primes the window. While a cooldown is active
the check-in is denied without being sampled. Otherwise the check-in joins
the window; once the window holds more than two samples, the empirical rate
(samples per elapsed second between the first and last sample) is compared
against the threshold, the window is reset to the newest sample, and a
cooldown is set when the threshold was exceeded.

Parameters:
  - action: Logical action name (e.g. "chatMsg").
  - hz: Maximum sustained rate the caller allows for this action.

Returns:
  - Verdict: VerdictAllowed, VerdictCoolingDown, or VerdictFlooded
*/
func (l *Limiter) Check(action string, hz float64) Verdict {
	current := l.now()

	window, seen := l.samples[action]
	if !seen {
		// First check-in primes the window and is always allowed.
		l.samples[action] = []time.Time{current}
		return VerdictAllowed
	}

	// An active cooldown denies outright and records nothing: a client
	// hammering a locked action must not extend its own window.
	if expiry, locked := l.cooldown[action]; locked && current.Before(expiry) {
		return VerdictCoolingDown
	}

	window = append(window, current)
	if len(window) <= burstTolerance {
		l.samples[action] = window
		return VerdictAllowed
	}

	// Rate decision: samples per elapsed second across the window. A zero
	// elapsed time yields +Inf, which exceeds any finite threshold.
	elapsed := window[len(window)-1].Sub(window[0]).Seconds()
	observed := float64(len(window)) / elapsed

	// The window always resets to the newest sample after a decision.
	l.samples[action] = []time.Time{current}

	if observed > hz {
		l.cooldown[action] = current.Add(CooldownDuration)
		return VerdictFlooded
	}
	return VerdictAllowed
}

// Throttled reports whether the check-in for action must be denied.
//
// It is the boolean convenience form of [Limiter.Check].
func (l *Limiter) Throttled(action string, hz float64) bool {
	return l.Check(action, hz) != VerdictAllowed
}

// CooldownRemaining returns how long the action stays locked, or zero when
// no cooldown is active. Callers include it in throttle notices so clients
// can back off deterministically.
func (l *Limiter) CooldownRemaining(action string) time.Duration {
	expiry, locked := l.cooldown[action]
	if !locked {
		return 0
	}
	remaining := expiry.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Notice is the payload sent back to a connection when one of its actions
// was throttled.
type Notice struct {
	Action string `json:"action"`
	Msg    string `json:"msg"`
}

// NoticeFor builds the client notice for a denied check-in. A fresh trip
// and a repeat during an existing cooldown read differently so clients can
// tell a new lockout from an ongoing one.
func NoticeFor(action string, verdict Verdict) *Notice {
	switch verdict {
	case VerdictFlooded:
		return &Notice{
			Action: action,
			Msg: fmt.Sprintf("Stop doing that so fast! Cooldown: %ds",
				int(CooldownDuration.Seconds())),
		}
	case VerdictCoolingDown:
		return &Notice{
			Action: action,
			Msg:    "You're still on cooldown!",
		}
	default:
		return nil
	}
}
