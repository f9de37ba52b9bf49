// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/pvkpi/store"
	"github.com/rs/zerolog"
)

// Store is a store.Store backed by a PostgreSQL connection pool
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to the database identified by dbURL
func New(ctx context.Context, dbURL string, logger zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	return &Store{
		pool:   pool,
		logger: logger.With().Str("Backend", "postgres").Logger(),
	}, nil
}

// NewFromPool wraps an existing pool
func NewFromPool(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("Backend", "postgres").Logger(),
	}
}

func (pg *Store) Close() {
	pg.pool.Close()
}

func (pg *Store) FinancialRows(ctx context.Context, symbols []string, years []int) ([]*store.FinancialRow, error) {
	if len(symbols) == 0 || len(years) == 0 {
		return []*store.FinancialRow{}, nil
	}

	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows := make([]*store.FinancialRow, 0, len(symbols)*len(years))
	err = pgxscan.Select(ctx, conn, &rows, `SELECT id, symbol, year, payload, updated_at FROM financial_cache WHERE symbol = ANY($1) AND year = ANY($2) ORDER BY symbol, year, id`, symbols, years)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (pg *Store) KPIRows(ctx context.Context, filter store.KPIFilter) ([]*store.KPIRow, error) {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	where := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if len(filter.Symbols) > 0 {
		args = append(args, filter.Symbols)
		where = append(where, fmt.Sprintf("symbol = ANY($%d)", len(args)))
	}

	if len(filter.Years) > 0 {
		args = append(args, filter.Years)
		where = append(where, fmt.Sprintf("year = ANY($%d)", len(args)))
	}

	if filter.Description.Valid {
		args = append(args, filter.Description.String)
		where = append(where, fmt.Sprintf("description = $%d", len(args)))
	}

	sql := `SELECT id, symbol, description, year, payload, created_at FROM kpi_cache`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY symbol, year, id"

	rows := make([]*store.KPIRow, 0)
	if err := pgxscan.Select(ctx, conn, &rows, sql, args...); err != nil {
		return nil, err
	}

	return rows, nil
}

func (pg *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				pg.logger.Error().Err(err).Msg("could not rollback transaction")
			}
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (pg *Store) Stats(ctx context.Context) (*store.Stats, error) {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	stats := &store.Stats{}
	err = conn.QueryRow(ctx, `SELECT count(*), count(DISTINCT symbol), coalesce(min(year), 0), coalesce(max(year), 0), coalesce(max(updated_at), '0001-01-01'::timestamptz) FROM financial_cache`).Scan(
		&stats.FinancialRecords, &stats.Symbols, &stats.MinYear, &stats.MaxYear, &stats.LastUpdated)
	if err != nil {
		return nil, err
	}

	if err := conn.QueryRow(ctx, `SELECT count(*) FROM kpi_cache`).Scan(&stats.KPIRecords); err != nil {
		return nil, err
	}

	return stats, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) FinancialPayload(ctx context.Context, symbol string, year int) (string, bool, error) {
	var payload string
	err := t.tx.QueryRow(ctx, `SELECT payload FROM financial_cache WHERE symbol = $1 AND year = $2 ORDER BY id LIMIT 1`, symbol, year).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return payload, true, nil
}

func (t *pgTx) InsertFinancial(ctx context.Context, symbol string, year int, payload string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO financial_cache (symbol, year, payload, updated_at) VALUES ($1, $2, $3, $4)`, symbol, year, payload, time.Now())
	return err
}

func (t *pgTx) UpdateFinancial(ctx context.Context, symbol string, year int, payload string) error {
	_, err := t.tx.Exec(ctx, `UPDATE financial_cache SET payload = $3, updated_at = $4 WHERE symbol = $1 AND year = $2`, symbol, year, payload, time.Now())
	return err
}

func (t *pgTx) KPIExists(ctx context.Context, symbol string, year int) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kpi_cache WHERE symbol = $1 AND year = $2)`, symbol, year).Scan(&exists)
	return exists, err
}

func (t *pgTx) InsertKPI(ctx context.Context, symbol string, description null.String, year int, payload string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO kpi_cache (symbol, description, year, payload, created_at) VALUES ($1, $2, $3, $4, $5)`, symbol, description, year, payload, time.Now())
	return err
}
