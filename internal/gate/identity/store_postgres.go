// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/rondo/internal/platform/apperr"
	"github.com/taibuivan/rondo/internal/platform/dberr"
	"github.com/taibuivan/rondo/internal/platform/sec"
)

// # Account Repository

// PostgresAccountStore implements the AccountStore interface using pgx.
//
// All queries are strictly parameterized; no user-supplied value is ever
// interpolated into SQL text.
type PostgresAccountStore struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountStore creates a new PostgreSQL implementation of AccountStore.
func NewPostgresAccountStore(pool *pgxpool.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

/*
FindByUsername retrieves an account record by its unique username.

Description: Exact-match lookup used by login, registration pre-checks, and
guest name reservation.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *Account: Hydrated account entity
  - error: apperr.NotFound or execution errors
*/
func (store *PostgresAccountStore) FindByUsername(context context.Context, username string) (*Account, error) {
	const query = `
		SELECT id, username, passwordhash, globalrank, createdat
		FROM gate.account
		WHERE username = $1`

	account := &Account{}
	err := store.pool.QueryRow(context, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.GlobalRank,
		&account.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_store_find_failed: %w", err)
	}

	return account, nil
}

/*
Create persists a new account record into the gate.account table.

Description: The unique index on username is the final arbiter for name
races; violations surface as apperr.Conflict.

Parameters:
  - context: context.Context
  - account: *Account (Entity to persist)

Returns:
  - error: apperr.Conflict for a duplicate username, or execution errors
*/
func (store *PostgresAccountStore) Create(context context.Context, account *Account) error {
	const query = `
		INSERT INTO gate.account (id, username, passwordhash, globalrank, createdat)
		VALUES ($1, $2, $3, $4, $5)`

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := store.pool.Exec(context, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.GlobalRank,
		account.CreatedAt,
	)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Username is already registered")
		}
		return fmt.Errorf("postgres_account_store_create_failed: %w", err)
	}

	return nil
}

/*
LookupRoomRank retrieves the rank granted to a username within one room.

Description: Absence of a grant is the common case and is not an error; it
resolves to the guest rank.

Parameters:
  - context: context.Context
  - room: string
  - username: string

Returns:
  - sec.Rank: The granted rank, or sec.RankGuest when no grant exists
  - error: Execution errors
*/
func (store *PostgresAccountStore) LookupRoomRank(context context.Context, room, username string) (sec.Rank, error) {
	const query = `
		SELECT rank
		FROM gate.room_rank
		WHERE room = $1 AND username = $2`

	var rank sec.Rank
	err := store.pool.QueryRow(context, query, room, username).Scan(&rank)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sec.RankGuest, nil
		}
		return sec.RankGuest, fmt.Errorf("postgres_account_store_room_rank_failed: %w", err)
	}

	return rank, nil
}
