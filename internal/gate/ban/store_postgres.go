// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ban

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/rondo/internal/platform/apperr"
	"github.com/taibuivan/rondo/internal/platform/dberr"
)

// # Ban Repository

// PostgresStore implements the Store interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of the ban Store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
ListBans returns every row of the gate.global_ban table.

Description: Full-table read used by the cache snapshot refresh. The table
is operator-curated and small; no pagination is needed.

Parameters:
  - context: context.Context

Returns:
  - []Ban: All ban entries, newest first
  - error: Connectivity or execution errors
*/
func (store *PostgresStore) ListBans(context context.Context) ([]Ban, error) {
	const query = `
		SELECT address, note, createdat
		FROM gate.global_ban
		ORDER BY createdat DESC`

	rows, err := store.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_ban_store_list_failed: %w", err)
	}
	defer rows.Close()

	bans := make([]Ban, 0)
	for rows.Next() {
		var ban Ban
		if err := rows.Scan(&ban.Address, &ban.Note, &ban.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_ban_store_scan_failed: %w", err)
		}
		bans = append(bans, ban)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_ban_store_rows_failed: %w", err)
	}

	return bans, nil
}

/*
AddBan persists a new ban entry into the gate.global_ban table.

Parameters:
  - context: context.Context
  - ban: *Ban (Entity to persist)

Returns:
  - error: apperr.Conflict for a duplicate address, or execution errors
*/
func (store *PostgresStore) AddBan(context context.Context, ban *Ban) error {
	const query = `
		INSERT INTO gate.global_ban (address, note, createdat)
		VALUES ($1, $2, $3)`

	_, err := store.pool.Exec(context, query, ban.Address, ban.Note, ban.CreatedAt)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return apperr.Conflict("Address is already banned")
		}
		return fmt.Errorf("postgres_ban_store_add_failed: %w", err)
	}

	return nil
}

/*
RemoveBan deletes the ban row for the exact address.

Parameters:
  - context: context.Context
  - address: Exact banned value

Returns:
  - error: apperr.NotFound when no row matched, or execution errors
*/
func (store *PostgresStore) RemoveBan(context context.Context, address string) error {
	const query = "DELETE FROM gate.global_ban WHERE address = $1"

	tag, err := store.pool.Exec(context, query, address)
	if err != nil {
		return fmt.Errorf("postgres_ban_store_remove_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Ban for this address")
	}

	return nil
}
