// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ban implements global address bans and the in-memory cache that
answers ban checks on the connection accept path.

# Design

Every inbound connection is checked against the global ban list before any
other processing. That check must never touch the database: the [Cache]
holds a snapshot of the ban table in memory and refreshes it on demand, at
most once per refresh window. Bans match by exact address and, for IPv4
dotted-quad addresses, by /16 and /24 range prefixes.
*/
package ban

import (
	"context"
	"time"
)

// Ban is one entry of the global ban list.
type Ban struct {
	// Address is the banned value: a full IPv4 address, an address range
	// prefix such as "10.0" or "10.0.1", or any non-IPv4 identifier the
	// operators choose to ban by.
	Address string `json:"address"`

	// Note is the operator-supplied reason, shown in the admin surface only.
	Note string `json:"note"`

	// CreatedAt records when the ban was issued.
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence boundary for the global ban list.
type Store interface {
	// ListBans returns the entire ban table.
	ListBans(ctx context.Context) ([]Ban, error)

	// AddBan persists a new ban entry.
	AddBan(ctx context.Context, ban *Ban) error

	// RemoveBan deletes the ban for the exact address. It returns
	// apperr.NotFound when no such ban exists.
	RemoveBan(ctx context.Context, address string) error
}
