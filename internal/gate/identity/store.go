// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"

	"github.com/taibuivan/rondo/internal/gate/session"
	"github.com/taibuivan/rondo/internal/platform/sec"
)

// # Storage Contracts

// AccountStore is the persistence boundary for registered accounts and
// room-scoped rank grants.
type AccountStore interface {
	// FindByUsername returns the account holding the exact name, or
	// apperr.NotFound when the name is unregistered.
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// Create persists a new account. The store's uniqueness constraint is
	// the final arbiter for name races; duplicates return apperr.Conflict.
	Create(ctx context.Context, account *Account) error

	// LookupRoomRank returns the rank granted to (room, username), or
	// sec.RankGuest when no grant exists. Absence is not an error.
	LookupRoomRank(ctx context.Context, room, username string) (sec.Rank, error)
}

// SessionTokenStore issues and verifies the opaque tokens that let a
// client re-authenticate without re-sending its password.
type SessionTokenStore interface {
	// Issue mints a fresh token bound to the username.
	Issue(ctx context.Context, username string) (string, error)

	// Verify resolves a token back to its username, or apperr.NotFound
	// when the token is unknown or expired.
	Verify(ctx context.Context, token string) (string, error)
}

// # Room Contract

// RoomDirectory is the view of the room layer the resolver needs: name
// collision checks, room-scoped announcements, and existence checks.
type RoomDirectory interface {
	RoomExists(room string) bool

	// CurrentMembers lists the display names currently joined to the room.
	CurrentMembers(room string) []string

	// BroadcastIdentityJoined announces a resolved identity to the room.
	// Fire and forget; delivery failures are the room layer's problem.
	BroadcastIdentityJoined(room string, sess *session.Session)
}

// NoRooms is a RoomDirectory for deployments running the gate without a
// room layer: no rooms exist, nothing collides, broadcasts are dropped.
type NoRooms struct{}

func (NoRooms) RoomExists(string) bool { return false }

func (NoRooms) CurrentMembers(string) []string { return nil }

func (NoRooms) BroadcastIdentityJoined(string, *session.Session) {}
