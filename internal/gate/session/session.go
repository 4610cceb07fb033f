// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session defines the per-connection state the gate maintains for a
client from accept to disconnect.

A [Session] is created when a connection is accepted and mutated in place as
the client authenticates and joins a room. It is owned by the connection's
handler goroutine; nothing here is safe for concurrent use, matching the
one-goroutine-per-connection model the gate runs under.
*/
package session

import (
	"github.com/taibuivan/rondo/internal/gate/flood"
	"github.com/taibuivan/rondo/internal/platform/sec"
)

// Session carries the identity and abuse-control state of one connection.
type Session struct {
	// Addr is the remote network address the connection arrived from. It is
	// fixed at accept time and never changes afterwards.
	Addr string

	// Name is the display name the connection currently holds. Empty until
	// an identity is resolved.
	Name string

	// Authed reports whether the name is backed by a registered account.
	// Guests hold a name with Authed false.
	Authed bool

	// Rank is the effective privilege level, merged monotonically from the
	// account's global rank and any room-scoped rank.
	Rank sec.Rank

	// Room is the name of the room the connection has joined, or empty.
	Room string

	// Flood is the per-connection flood detector. Every session owns its
	// own instance; limits never bleed across connections.
	Flood *flood.Limiter
}

// New creates the initial state for a freshly accepted connection: an
// anonymous guest-ranked session with a fresh flood detector.
func New(addr string) *Session {
	return &Session{
		Addr:  addr,
		Rank:  sec.RankGuest,
		Flood: flood.NewLimiter(),
	}
}

// LoggedIn reports whether the session holds any identity, registered or
// guest.
func (s *Session) LoggedIn() bool {
	return s.Name != ""
}

// ApplyIdentity installs a resolved identity on the session.
//
// Rank is merged, never assigned: a session that already holds a higher
// rank (granted out of band by an administrator) keeps it.
func (s *Session) ApplyIdentity(name string, authed bool, global, room sec.Rank) {
	s.Name = name
	s.Authed = authed
	s.Rank = sec.MergeRank(s.Rank, global, room)
}

// Throttled runs the named action through the session's flood detector
// against the given threshold.
func (s *Session) Throttled(action string, hz float64) bool {
	return s.Flood.Throttled(action, hz)
}
