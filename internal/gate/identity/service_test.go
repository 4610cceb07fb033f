// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rondo/internal/gate/identity"
	"github.com/taibuivan/rondo/internal/gate/session"
	"github.com/taibuivan/rondo/internal/platform/apperr"
	"github.com/taibuivan/rondo/internal/platform/sec"
)

// # Fakes

type fakeAccounts struct {
	accounts    map[string]*identity.Account
	roomRanks   map[string]sec.Rank
	roomRankErr error
	createCalls int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		accounts:  make(map[string]*identity.Account),
		roomRanks: make(map[string]sec.Rank),
	}
}

func (s *fakeAccounts) addAccount(t *testing.T, username, password string, rank sec.Rank) {
	t.Helper()
	hash, err := sec.HashPassword(password)
	require.NoError(t, err)
	s.accounts[username] = &identity.Account{
		ID:           username + "-id",
		Username:     username,
		PasswordHash: hash,
		GlobalRank:   rank,
	}
}

func (s *fakeAccounts) FindByUsername(_ context.Context, username string) (*identity.Account, error) {
	account, found := s.accounts[username]
	if !found {
		return nil, apperr.NotFound("Account")
	}
	return account, nil
}

func (s *fakeAccounts) Create(_ context.Context, account *identity.Account) error {
	s.createCalls++
	if _, exists := s.accounts[account.Username]; exists {
		return apperr.Conflict("Username is already registered")
	}
	s.accounts[account.Username] = account
	return nil
}

func (s *fakeAccounts) LookupRoomRank(_ context.Context, room, username string) (sec.Rank, error) {
	if s.roomRankErr != nil {
		return sec.RankGuest, s.roomRankErr
	}
	rank, found := s.roomRanks[room+"/"+username]
	if !found {
		return sec.RankGuest, nil
	}
	return rank, nil
}

type fakeTokens struct {
	tokens map[string]string
	minted int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: make(map[string]string)}
}

func (s *fakeTokens) Issue(_ context.Context, username string) (string, error) {
	s.minted++
	token := fmt.Sprintf("token-%d", s.minted)
	s.tokens[token] = username
	return token, nil
}

func (s *fakeTokens) Verify(_ context.Context, token string) (string, error) {
	username, found := s.tokens[token]
	if !found {
		return "", apperr.NotFound("Session token")
	}
	return username, nil
}

type fakeRooms struct {
	members    map[string][]string
	broadcasts []string
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{members: make(map[string][]string)}
}

func (r *fakeRooms) RoomExists(room string) bool { _, found := r.members[room]; return found }

func (r *fakeRooms) CurrentMembers(room string) []string { return r.members[room] }

func (r *fakeRooms) BroadcastIdentityJoined(room string, sess *session.Session) {
	r.broadcasts = append(r.broadcasts, room+"/"+sess.Name)
}

// # Harness

type harness struct {
	accounts *fakeAccounts
	tokens   *fakeTokens
	rooms    *fakeRooms
	clock    time.Time
	resolver *identity.Resolver
}

func newHarness() *harness {
	h := &harness{
		accounts: newFakeAccounts(),
		tokens:   newFakeTokens(),
		rooms:    newFakeRooms(),
		clock:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	tracker := identity.NewGuestTrackerWithClock(time.Minute, func() time.Time { return h.clock })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.resolver = identity.NewResolver(h.accounts, h.tokens, h.rooms, tracker, logger)
	return h
}

// # Guest Flow

func TestLogin_GuestSucceedsWithValidUnusedName(t *testing.T) {
	h := newHarness()
	sess := session.New("203.0.113.7")

	result, err := h.resolver.Login(context.Background(), sess, identity.LoginInput{Name: "bob123"})

	require.NoError(t, err)
	assert.Equal(t, "bob123", result.Name)
	assert.False(t, result.Authed)
	assert.Equal(t, sec.RankGuest, result.Rank)
	assert.Empty(t, result.SessionToken)

	assert.Equal(t, "bob123", sess.Name)
	assert.False(t, sess.Authed)
	assert.True(t, sess.LoggedIn())
}

func TestLogin_GuestIntervalEnforcedPerAddress(t *testing.T) {
	h := newHarness()

	_, err := h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{Name: "bob123"})
	require.NoError(t, err)

	// Same address inside the interval is rejected with the remaining wait.
	h.clock = h.clock.Add(20 * time.Second)
	_, err = h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{Name: "carol"})

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "RATE_LIMITED", appErr.Code)
	assert.Equal(t, 40, appErr.RetryAfter)

	// A different address is unaffected.
	_, err = h.resolver.Login(context.Background(), session.New("203.0.113.8"), identity.LoginInput{Name: "carol"})
	assert.NoError(t, err)

	// The first address recovers once the interval has elapsed.
	h.clock = h.clock.Add(40 * time.Second)
	_, err = h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{Name: "dave"})
	assert.NoError(t, err)
}

func TestLogin_GuestRejectedWhenNameRegistered(t *testing.T) {
	h := newHarness()
	h.accounts.addAccount(t, "bob123", "secret", sec.RankMember)

	_, err := h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{Name: "bob123"})

	require.EqualError(t, err, "That username is already taken")

	// The rejection released the guest slot: the same address may retry
	// immediately with a different name.
	_, err = h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{Name: "carol"})
	assert.NoError(t, err)
}

func TestLogin_GuestRejectedForInvalidName(t *testing.T) {
	h := newHarness()

	_, err := h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{Name: "bob!123"})

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Message, "Invalid username")
}

func TestLogin_NameInUseInRoomRejectedBeforeCredentials(t *testing.T) {
	h := newHarness()
	h.rooms.members["lobby"] = []string{"bob123", "carol"}
	sess := session.New("203.0.113.7")
	sess.Room = "lobby"

	// Guest path.
	_, err := h.resolver.Login(context.Background(), sess, identity.LoginInput{Name: "bob123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use in this room")

	// Credential path hits the same room-scoped check first: no account
	// named carol exists, yet the collision error wins.
	_, err = h.resolver.Login(context.Background(), sess, identity.LoginInput{Name: "carol", Password: "whatever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in use in this room")
}

// # Credentialed Flow

func TestLogin_CredentialMergesRanks(t *testing.T) {
	testCases := []struct {
		name        string
		globalRank  sec.Rank
		roomRank    sec.Rank
		sessionRank sec.Rank
		expected    sec.Rank
	}{
		{
			name:        "room rank above global wins",
			globalRank:  sec.Rank(3),
			roomRank:    sec.Rank(5),
			sessionRank: sec.RankGuest,
			expected:    sec.Rank(5),
		},
		{
			name:        "global rank above room wins",
			globalRank:  sec.Rank(5),
			roomRank:    sec.Rank(3),
			sessionRank: sec.RankGuest,
			expected:    sec.Rank(5),
		},
		{
			name:        "already elevated session is never demoted",
			globalRank:  sec.Rank(3),
			roomRank:    sec.Rank(5),
			sessionRank: sec.Rank(7),
			expected:    sec.Rank(7),
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h := newHarness()
			h.accounts.addAccount(t, "bob123", "secret", testCase.globalRank)
			h.accounts.roomRanks["lobby/bob123"] = testCase.roomRank
			h.rooms.members["lobby"] = []string{}

			sess := session.New("203.0.113.7")
			sess.Room = "lobby"
			sess.Rank = testCase.sessionRank

			result, err := h.resolver.Login(context.Background(), sess, identity.LoginInput{
				Name:     "bob123",
				Password: "secret",
			})

			require.NoError(t, err)
			assert.True(t, result.Authed)
			assert.Equal(t, testCase.expected, result.Rank)
			assert.Equal(t, testCase.expected, sess.Rank)
		})
	}
}

func TestLogin_RoomRankLookupFailureDegradesToGlobalRank(t *testing.T) {
	h := newHarness()
	h.accounts.addAccount(t, "bob123", "secret", sec.RankModerator)
	h.accounts.roomRankErr = errors.New("connection refused")
	h.rooms.members["lobby"] = []string{}

	sess := session.New("203.0.113.7")
	sess.Room = "lobby"

	result, err := h.resolver.Login(context.Background(), sess, identity.LoginInput{
		Name:     "bob123",
		Password: "secret",
	})

	// The login still succeeds; the merge just sees a guest room rank.
	require.NoError(t, err)
	assert.Equal(t, sec.RankModerator, result.Rank)
}

func TestLogin_CredentialFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness()
	h.accounts.addAccount(t, "bob123", "secret", sec.RankMember)

	// Wrong password for an existing account.
	sess := session.New("203.0.113.7")
	_, wrongPassword := h.resolver.Login(context.Background(), sess, identity.LoginInput{
		Name:     "bob123",
		Password: "nope",
	})

	// A name that does not exist at all.
	_, unknownName := h.resolver.Login(context.Background(), sess, identity.LoginInput{
		Name:     "nobody",
		Password: "nope",
	})

	require.Error(t, wrongPassword)
	require.Error(t, unknownName)
	assert.Equal(t, wrongPassword.Error(), unknownName.Error())
	assert.Equal(t, "Invalid session", wrongPassword.Error())

	// Failed logins never touch session state.
	assert.Empty(t, sess.Name)
	assert.False(t, sess.Authed)
}

func TestLogin_SessionTokenRoundTrip(t *testing.T) {
	h := newHarness()
	h.accounts.addAccount(t, "bob123", "secret", sec.RankModerator)

	// Password login mints a token.
	first, err := h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{
		Name:     "bob123",
		Password: "secret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.SessionToken)

	// A later connection presents the token instead of the password and
	// gets the same token handed back.
	second, err := h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{
		Name:         "bob123",
		SessionToken: first.SessionToken,
	})
	require.NoError(t, err)
	assert.True(t, second.Authed)
	assert.Equal(t, first.SessionToken, second.SessionToken)
	assert.Equal(t, sec.RankModerator, second.Rank)

	// A token bound to one name does not authenticate another.
	_, err = h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{
		Name:         "carol",
		SessionToken: first.SessionToken,
	})
	require.EqualError(t, err, "Invalid session")
}

func TestLogin_PasswordTruncatedBeforeComparison(t *testing.T) {
	h := newHarness()
	longPassword := strings.Repeat("a", 150)
	h.accounts.addAccount(t, "bob123", longPassword[:100], sec.RankMember)

	// Everything past the cap is ignored, so the over-long submission
	// still verifies against the capped credential.
	result, err := h.resolver.Login(context.Background(), session.New("203.0.113.7"), identity.LoginInput{
		Name:     "bob123",
		Password: longPassword,
	})

	require.NoError(t, err)
	assert.True(t, result.Authed)
}

func TestLogin_BroadcastsIdentityToRoom(t *testing.T) {
	h := newHarness()
	h.accounts.addAccount(t, "bob123", "secret", sec.RankMember)
	h.rooms.members["lobby"] = []string{}

	sess := session.New("203.0.113.7")
	sess.Room = "lobby"

	_, err := h.resolver.Login(context.Background(), sess, identity.LoginInput{
		Name:     "bob123",
		Password: "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"lobby/bob123"}, h.rooms.broadcasts)
}

// # Registration Flow

func TestRegister_EmptyPasswordRejectedWithoutStoreWrite(t *testing.T) {
	h := newHarness()

	_, err := h.resolver.Register(context.Background(), session.New("203.0.113.7"), identity.RegisterInput{
		Name: "bob123",
	})

	require.EqualError(t, err, "Validation failed")
	assert.Equal(t, 0, h.accounts.createCalls)
}

func TestRegister_TakenNameRejectedWithoutStoreWrite(t *testing.T) {
	h := newHarness()
	h.accounts.addAccount(t, "bob123", "secret", sec.RankMember)

	_, err := h.resolver.Register(context.Background(), session.New("203.0.113.7"), identity.RegisterInput{
		Name:     "bob123",
		Password: "hunter2",
	})

	require.EqualError(t, err, "That username is already taken")
	assert.Equal(t, 0, h.accounts.createCalls)
}

func TestRegister_InvalidNameRejected(t *testing.T) {
	h := newHarness()

	_, err := h.resolver.Register(context.Background(), session.New("203.0.113.7"), identity.RegisterInput{
		Name:     "bob!123",
		Password: "hunter2",
	})

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Equal(t, 0, h.accounts.createCalls)
}

func TestRegister_SuccessChainsIntoAuthenticatedLogin(t *testing.T) {
	h := newHarness()
	sess := session.New("203.0.113.7")

	result, err := h.resolver.Register(context.Background(), sess, identity.RegisterInput{
		Name:     "bob123",
		Password: "hunter2",
	})

	require.NoError(t, err)
	assert.True(t, result.Authed)
	assert.NotEmpty(t, result.SessionToken)
	assert.Equal(t, sec.RankMember, result.Rank)
	assert.True(t, sess.Authed)
	assert.Equal(t, "bob123", sess.Name)

	// The account was persisted with the default member rank.
	created, found := h.accounts.accounts["bob123"]
	require.True(t, found)
	assert.Equal(t, sec.RankMember, created.GlobalRank)
	assert.NotEqual(t, "hunter2", created.PasswordHash)
}
