// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/taibuivan/rondo/internal/gate/session"
	"github.com/taibuivan/rondo/internal/platform/apperr"
	"github.com/taibuivan/rondo/internal/platform/constants"
	"github.com/taibuivan/rondo/internal/platform/sec"
	"github.com/taibuivan/rondo/internal/platform/validate"
	"github.com/taibuivan/rondo/pkg/uuid"
)

// Resolver orchestrates the guest, credentialed, and registration flows.
type Resolver struct {
	accounts AccountStore
	tokens   SessionTokenStore
	rooms    RoomDirectory
	guests   *GuestTracker
	logger   *slog.Logger
}

// NewResolver constructs the identity [Resolver].
func NewResolver(
	accounts AccountStore,
	tokens SessionTokenStore,
	rooms RoomDirectory,
	guests *GuestTracker,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		accounts: accounts,
		tokens:   tokens,
		rooms:    rooms,
		guests:   guests,
		logger:   logger,
	}
}

/*
Login resolves an identity for the session.

Description: Selects the guest flow when neither a password nor a session
token is supplied, otherwise the credentialed flow. In both cases a display
name already used by a member of the session's current room is rejected
before anything else; the check is room-scoped and independent of
registration status.

Parameters:
  - ctx: context.Context
  - sess: *session.Session (Mutated on success only)
  - input: LoginInput

Returns:
  - *Result: The resolved identity
  - error: Policy rejections as *apperr.AppError, or store failures
*/
func (resolver *Resolver) Login(ctx context.Context, sess *session.Session, input LoginInput) (*Result, error) {

	// ── 1. Room-Scoped Collision Check ────────────────────────────────────
	if sess.Room != "" && input.Name != "" {
		for _, member := range resolver.rooms.CurrentMembers(sess.Room) {
			if member == input.Name {
				return nil, apperr.Conflict(
					fmt.Sprintf("The username %s is already in use in this room", input.Name),
				)
			}
		}
	}

	// ── 2. Flow Selection ─────────────────────────────────────────────────
	if input.Password == "" && input.SessionToken == "" {
		return resolver.guestLogin(ctx, sess, input.Name)
	}
	return resolver.credentialLogin(ctx, sess, input)
}

/*
Register creates an account and chains straight into a credentialed login.

Description: Rejects an empty password and structurally invalid names
outright, and optimistically rejects names that are already registered,
all without touching the registration primitive. The store's uniqueness
constraint remains the final arbiter: a race that slips past the pre-check
surfaces as a generic registration failure.

Parameters:
  - ctx: context.Context
  - sess: *session.Session
  - input: RegisterInput

Returns:
  - *Result: An authenticated identity for the new account
  - error: Policy rejections as *apperr.AppError, or store failures
*/
func (resolver *Resolver) Register(ctx context.Context, sess *session.Session, input RegisterInput) (*Result, error) {

	// ── 1. Input Rejection ────────────────────────────────────────────────
	if input.Password == "" {
		return nil, validate.RequiredError("password", "You must provide a password")
	}

	if _, err := resolver.accounts.FindByUsername(ctx, input.Name); err == nil {
		return nil, apperr.Conflict("That username is already taken")
	} else if !isNotFound(err) {
		return nil, err
	}

	if !validate.ValidUsername(input.Name) {
		return nil, apperr.ValidationError("Invalid username. " + validate.UsernameRule)
	}

	// ── 2. Account Creation ───────────────────────────────────────────────
	passwordHash, err := sec.HashPassword(truncatePassword(input.Password))
	if err != nil {
		return nil, apperr.Internal(err)
	}

	account := &Account{
		ID:           uuid.New(),
		Username:     input.Name,
		PasswordHash: passwordHash,
		GlobalRank:   sec.RankMember,
	}

	if err := resolver.accounts.Create(ctx, account); err != nil {
		// A name race past the optimistic check reports generically; the
		// specific reason was already checked above.
		if appErr := apperr.As(err); appErr != nil && appErr.HTTPStatus == http.StatusConflict {
			return nil, apperr.Conflict("Registration failed")
		}
		return nil, err
	}

	resolver.logger.InfoContext(ctx, "account_registered",
		slog.String("addr", sess.Addr),
		slog.String("name", input.Name),
	)

	// ── 3. Login Chaining ─────────────────────────────────────────────────
	// The new account is authenticated in the same round trip.
	return resolver.Login(ctx, sess, LoginInput{Name: input.Name, Password: input.Password})
}

// # Guest Flow

// guestLogin establishes a name-only identity at guest rank.
func (resolver *Resolver) guestLogin(ctx context.Context, sess *session.Session, name string) (*Result, error) {

	// ── 1. Per-Address Interval ───────────────────────────────────────────
	// The slot is claimed atomically up front so two simultaneous guest
	// logins from one address cannot both pass, and released again if a
	// later check rejects this one.
	remaining, claimed := resolver.guests.Reserve(sess.Addr)
	if !claimed {
		return nil, apperr.RateLimited(
			fmt.Sprintf(
				"Guest logins are restricted to one per %d seconds per address. This restriction does not apply to registered users.",
				int(resolver.guests.delay.Seconds()),
			),
			int(math.Ceil(remaining.Seconds())),
		)
	}

	// ── 2. Name Reservation ───────────────────────────────────────────────
	// Registered names are reserved even for guests, banned or not.
	if _, err := resolver.accounts.FindByUsername(ctx, name); err == nil {
		resolver.guests.Release(sess.Addr)
		return nil, apperr.Conflict("That username is already taken")
	} else if !isNotFound(err) {
		resolver.guests.Release(sess.Addr)
		return nil, err
	}

	// ── 3. Structural Validity ────────────────────────────────────────────
	if !validate.ValidUsername(name) {
		resolver.guests.Release(sess.Addr)
		return nil, apperr.ValidationError("Invalid username. " + validate.UsernameRule)
	}

	// ── 4. Identity Establishment ─────────────────────────────────────────
	sess.ApplyIdentity(name, false, sec.RankGuest, sec.RankGuest)

	resolver.logger.InfoContext(ctx, "guest_signed_in",
		slog.String("addr", sess.Addr),
		slog.String("name", name),
	)

	if sess.Room != "" {
		resolver.rooms.BroadcastIdentityJoined(sess.Room, sess)
	}

	return &Result{Name: name, Authed: false, Rank: sess.Rank}, nil
}

// # Credentialed Flow

// credentialLogin verifies a password or session token and establishes an
// authenticated identity with a merged effective rank.
func (resolver *Resolver) credentialLogin(ctx context.Context, sess *session.Session, input LoginInput) (*Result, error) {

	// ── 1. Credential Verification ────────────────────────────────────────
	account, token, err := resolver.verifyCredential(ctx, input)
	if err != nil {
		// Every client-caused failure collapses into one answer so a caller
		// cannot probe which names exist.
		if appErr := apperr.As(err); appErr != nil && appErr.HTTPStatus < http.StatusInternalServerError {
			return nil, apperr.Unauthorized("Invalid session")
		}
		resolver.logger.ErrorContext(ctx, "credential_verification_failed",
			slog.String("addr", sess.Addr),
			slog.Any("error", err),
		)
		return nil, err
	}

	// ── 2. Rank Merge ─────────────────────────────────────────────────────
	// A failed room-rank lookup degrades to guest rank rather than failing
	// the login: the account's global rank still applies, and the merge can
	// only be too low, never too high.
	roomRank := sec.RankGuest
	if sess.Room != "" {
		roomRank, err = resolver.accounts.LookupRoomRank(ctx, sess.Room, account.Username)
		if err != nil {
			resolver.logger.WarnContext(ctx, "room_rank_lookup_failed",
				slog.String("room", sess.Room),
				slog.String("name", account.Username),
				slog.Any("error", err),
			)
			roomRank = sec.RankGuest
		}
	}

	sess.ApplyIdentity(account.Username, true, account.GlobalRank, roomRank)

	resolver.logger.InfoContext(ctx, "user_logged_in",
		slog.String("addr", sess.Addr),
		slog.String("name", account.Username),
		slog.Int("rank", int(sess.Rank)),
	)

	// ── 3. Room Announcement ──────────────────────────────────────────────
	if sess.Room != "" {
		resolver.rooms.BroadcastIdentityJoined(sess.Room, sess)
	}

	return &Result{
		AccountID:    account.ID,
		Name:         account.Username,
		Authed:       true,
		Rank:         sess.Rank,
		SessionToken: token,
	}, nil
}

// verifyCredential resolves either credential form into an account and the
// session token to hand back: a fresh one on the password path, the same
// one on the token path.
func (resolver *Resolver) verifyCredential(ctx context.Context, input LoginInput) (*Account, string, error) {

	// Session token path.
	if input.SessionToken != "" {
		username, err := resolver.tokens.Verify(ctx, input.SessionToken)
		if err != nil {
			return nil, "", err
		}
		if username != input.Name {
			return nil, "", apperr.Unauthorized("Invalid session")
		}

		account, err := resolver.accounts.FindByUsername(ctx, username)
		if err != nil {
			return nil, "", err
		}
		return account, input.SessionToken, nil
	}

	// Password path.
	account, err := resolver.accounts.FindByUsername(ctx, input.Name)
	if err != nil {
		return nil, "", err
	}

	if !sec.CheckPasswordHash(truncatePassword(input.Password), account.PasswordHash) {
		return nil, "", apperr.Unauthorized("Invalid session")
	}

	token, err := resolver.tokens.Issue(ctx, account.Username)
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// # Helpers

// truncatePassword caps a password at the maximum credential length before
// hashing or comparison, so over-long submissions verify consistently.
func truncatePassword(password string) string {
	if len(password) > constants.MaxPasswordLength {
		return password[:constants.MaxPasswordLength]
	}
	return password
}

// isNotFound reports whether err is the not-found class of [apperr.AppError].
func isNotFound(err error) bool {
	appErr := apperr.As(err)
	return appErr != nil && appErr.HTTPStatus == http.StatusNotFound
}
