// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ban_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rondo/internal/gate/ban"
)

// fakeStore is an in-memory Store that counts list queries and can be
// switched into a failing mode.
type fakeStore struct {
	bans      map[string]ban.Ban
	listCalls int
	failing   bool
}

func newFakeStore(addresses ...string) *fakeStore {
	store := &fakeStore{bans: make(map[string]ban.Ban)}
	for _, address := range addresses {
		store.bans[address] = ban.Ban{Address: address}
	}
	return store
}

func (s *fakeStore) ListBans(_ context.Context) ([]ban.Ban, error) {
	s.listCalls++
	if s.failing {
		return nil, errors.New("connection refused")
	}
	out := make([]ban.Ban, 0, len(s.bans))
	for _, entry := range s.bans {
		out = append(out, entry)
	}
	return out, nil
}

func (s *fakeStore) AddBan(_ context.Context, entry *ban.Ban) error {
	if s.failing {
		return errors.New("connection refused")
	}
	s.bans[entry.Address] = *entry
	return nil
}

func (s *fakeStore) RemoveBan(_ context.Context, address string) error {
	if s.failing {
		return errors.New("connection refused")
	}
	delete(s.bans, address)
	return nil
}

// fakeClock steps time manually.
type fakeClock struct {
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.current }
func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(store ban.Store, clock *fakeClock) *ban.Cache {
	return ban.NewCacheWithClock(store, 5*time.Minute, discardLogger(), clock.Now)
}

func TestIsBanned_Matching(t *testing.T) {
	testCases := []struct {
		name     string
		banned   []string
		address  string
		expected bool
	}{
		{
			name:     "exact address match",
			banned:   []string{"203.0.113.7"},
			address:  "203.0.113.7",
			expected: true,
		},
		{
			name:     "two octet range prefix match",
			banned:   []string{"10.0"},
			address:  "10.0.1.2",
			expected: true,
		},
		{
			name:     "three octet range prefix match",
			banned:   []string{"10.0.1"},
			address:  "10.0.1.200",
			expected: true,
		},
		{
			name:     "neighbouring range does not match",
			banned:   []string{"10.0.1"},
			address:  "10.0.2.1",
			expected: false,
		},
		{
			name:     "unbanned address",
			banned:   []string{"203.0.113.7"},
			address:  "203.0.113.8",
			expected: false,
		},
		{
			name:     "non dotted-quad matches exactly",
			banned:   []string{"2001:db8::1"},
			address:  "2001:db8::1",
			expected: true,
		},
		{
			name:     "non dotted-quad gets no prefix expansion",
			banned:   []string{"2001:db8::1"},
			address:  "2001:db8::2",
			expected: false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cache := newTestCache(newFakeStore(testCase.banned...), newFakeClock())

			result := cache.IsBanned(context.Background(), testCase.address)

			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestIsBanned_RefreshesAtMostOncePerWindow(t *testing.T) {
	store := newFakeStore("203.0.113.7")
	clock := newFakeClock()
	cache := newTestCache(store, clock)

	// A burst of lookups inside one window triggers a single store query.
	for step := 0; step < 50; step++ {
		cache.IsBanned(context.Background(), "198.51.100.1")
		clock.Advance(time.Second)
	}
	assert.Equal(t, 1, store.listCalls)

	// Crossing the window boundary triggers exactly one more.
	clock.Advance(5 * time.Minute)
	cache.IsBanned(context.Background(), "198.51.100.1")
	cache.IsBanned(context.Background(), "198.51.100.1")
	assert.Equal(t, 2, store.listCalls)
}

func TestIsBanned_ServesStaleSnapshotOnStoreFailure(t *testing.T) {
	store := newFakeStore("203.0.113.7")
	clock := newFakeClock()
	cache := newTestCache(store, clock)

	// Prime the snapshot, then take the store down.
	require.True(t, cache.IsBanned(context.Background(), "203.0.113.7"))
	store.failing = true

	// Past the window the refresh attempt fails, but the check still
	// answers from the previous snapshot.
	clock.Advance(6 * time.Minute)
	assert.True(t, cache.IsBanned(context.Background(), "203.0.113.7"))
	assert.False(t, cache.IsBanned(context.Background(), "198.51.100.1"))

	// The failed attempt still counts for the window: no second query
	// until another interval passes.
	callsAfterFailure := store.listCalls
	cache.IsBanned(context.Background(), "203.0.113.7")
	assert.Equal(t, callsAfterFailure, store.listCalls)

	clock.Advance(6 * time.Minute)
	cache.IsBanned(context.Background(), "203.0.113.7")
	assert.Equal(t, callsAfterFailure+1, store.listCalls)
}

func TestAddBan_AppliesImmediately(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	cache := newTestCache(store, clock)

	require.False(t, cache.IsBanned(context.Background(), "203.0.113.7"))

	err := cache.AddBan(context.Background(), &ban.Ban{Address: "203.0.113.7", Note: "spam"})
	require.NoError(t, err)

	// No window wait: the ban is live on the very next check.
	assert.True(t, cache.IsBanned(context.Background(), "203.0.113.7"))

	// And it is persisted with a stamped timestamp.
	stored, found := store.bans["203.0.113.7"]
	require.True(t, found)
	assert.Equal(t, clock.Now(), stored.CreatedAt)
}

func TestAddBan_StoreFailureLeavesCacheUntouched(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	cache := newTestCache(store, clock)

	require.False(t, cache.IsBanned(context.Background(), "203.0.113.7"))
	store.failing = true

	err := cache.AddBan(context.Background(), &ban.Ban{Address: "203.0.113.7"})

	require.Error(t, err)
	store.failing = false
	assert.False(t, cache.IsBanned(context.Background(), "203.0.113.7"))
}

func TestRemoveBan_DropsFromCacheImmediately(t *testing.T) {
	store := newFakeStore("203.0.113.7")
	clock := newFakeClock()
	cache := newTestCache(store, clock)

	require.True(t, cache.IsBanned(context.Background(), "203.0.113.7"))

	err := cache.RemoveBan(context.Background(), "203.0.113.7")
	require.NoError(t, err)

	assert.False(t, cache.IsBanned(context.Background(), "203.0.113.7"))
	_, found := store.bans["203.0.113.7"]
	assert.False(t, found)
}

func TestRefresh_ForcesReloadInsideWindow(t *testing.T) {
	store := newFakeStore()
	clock := newFakeClock()
	cache := newTestCache(store, clock)

	require.False(t, cache.IsBanned(context.Background(), "203.0.113.7"))

	// Simulate an out-of-band table edit, then force a reload without
	// waiting out the interval.
	store.bans["203.0.113.7"] = ban.Ban{Address: "203.0.113.7"}
	require.NoError(t, cache.Refresh(context.Background()))

	assert.True(t, cache.IsBanned(context.Background(), "203.0.113.7"))
}
