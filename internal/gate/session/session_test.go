// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/rondo/internal/gate/session"
	"github.com/taibuivan/rondo/internal/platform/sec"
)

func TestNew_Defaults(t *testing.T) {
	sess := session.New("203.0.113.7")

	assert.Equal(t, "203.0.113.7", sess.Addr)
	assert.Empty(t, sess.Name)
	assert.False(t, sess.Authed)
	assert.Equal(t, sec.RankGuest, sess.Rank)
	assert.Empty(t, sess.Room)
	assert.NotNil(t, sess.Flood)
	assert.False(t, sess.LoggedIn())
}

func TestApplyIdentity_RankMergesMonotonically(t *testing.T) {
	testCases := []struct {
		name     string
		current  sec.Rank
		global   sec.Rank
		room     sec.Rank
		expected sec.Rank
	}{
		{
			name:     "room rank wins over global",
			current:  sec.RankGuest,
			global:   sec.RankOwner,
			room:     sec.RankSiteadmin,
			expected: sec.RankSiteadmin,
		},
		{
			name:     "global rank wins over room",
			current:  sec.RankGuest,
			global:   sec.RankSiteadmin,
			room:     sec.RankOwner,
			expected: sec.RankSiteadmin,
		},
		{
			name:     "existing elevated rank is never lowered",
			current:  sec.Rank(7),
			global:   sec.RankMember,
			room:     sec.RankModerator,
			expected: sec.Rank(7),
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			sess := session.New("203.0.113.7")
			sess.Rank = testCase.current

			sess.ApplyIdentity("alice", true, testCase.global, testCase.room)

			assert.Equal(t, "alice", sess.Name)
			assert.True(t, sess.Authed)
			assert.True(t, sess.LoggedIn())
			assert.Equal(t, testCase.expected, sess.Rank)
		})
	}
}
