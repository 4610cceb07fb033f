// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity resolves who a connection is.

It implements the three identity flows of the gate: guest login (a display
name with no credential), credentialed login (password or a previously
issued session token), and registration (which chains straight into a
credentialed login so a new account is authenticated in one round trip).

# State machine

A connection moves Anonymous -> Identified through exactly one successful
flow. Rejections leave the session untouched; a connection may retry.
Effective rank only ever rises within one connection's lifetime.
*/
package identity

import (
	"time"

	"github.com/taibuivan/rondo/internal/platform/sec"
)

// Account is a registered user record.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	GlobalRank   sec.Rank  `json:"global_rank"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginInput carries one inbound login request. An empty Password and
// SessionToken selects the guest flow.
type LoginInput struct {
	Name         string
	Password     string
	SessionToken string
}

// RegisterInput carries one inbound registration request.
type RegisterInput struct {
	Name     string
	Password string
}

// Result is the successful outcome of any identity flow.
type Result struct {
	// AccountID is the registered account's ID. Empty for guests.
	AccountID string `json:"account_id,omitempty"`

	// Name is the display name the session now holds.
	Name string `json:"name"`

	// Authed is true for credential-backed identities, false for guests.
	Authed bool `json:"authed"`

	// Rank is the session's effective rank after the merge.
	Rank sec.Rank `json:"rank"`

	// SessionToken is the opaque token to present on the next login.
	// Empty for guests.
	SessionToken string `json:"session_token,omitempty"`
}
