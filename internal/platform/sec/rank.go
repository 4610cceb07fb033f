// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Privilege Ranks

// Rank represents the privilege level applied to a session or account.
//
// Ranks form a total order: a higher value always implies every permission
// of a lower one. The numeric gaps leave room for room-local intermediate
// ranks without renumbering.
type Rank int

const (
	// RankGuest is the default for connections with no verified credential.
	RankGuest Rank = 0

	// RankMember is the default global rank granted on registration.
	RankMember Rank = 1

	// RankModerator can manage bans and moderate rooms.
	RankModerator Rank = 2

	// RankOwner administers a room.
	RankOwner Rank = 3

	// RankSiteadmin has unrestricted access across the service.
	RankSiteadmin Rank = 255
)

// AtLeast reports whether the rank meets or exceeds the required target rank.
func (r Rank) AtLeast(target Rank) bool {
	return r >= target
}

// String returns the canonical name for well-known ranks.
func (r Rank) String() string {
	switch r {
	case RankGuest:
		return "guest"
	case RankMember:
		return "member"
	case RankModerator:
		return "moderator"
	case RankOwner:
		return "owner"
	case RankSiteadmin:
		return "siteadmin"
	default:
		return "custom"
	}
}

// # Effective Rank Merge

// MergeRank computes the effective rank of a session from its current rank,
// the account's global rank, and the room-local rank.
//
// The result is the greatest of the three, which makes the merge monotonic:
// a session's rank, once raised, is never lowered by a later merge within
// the same connection.
func MergeRank(current, global, room Rank) Rank {
	merged := global
	if room > merged {
		merged = room
	}
	if current > merged {
		merged = current
	}
	return merged
}
