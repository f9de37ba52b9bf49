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
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/store"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// Store is a store.Store backed by a local SQLite database
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens the SQLite database at dsn. A single connection is used so
// writers serialize and in-memory databases are shared by every operation.
func New(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("Backend", "sqlite").Logger(),
	}, nil
}

// DB exposes the underlying handle for schema migration
func (lite *Store) DB() *sql.DB {
	return lite.db
}

func (lite *Store) Close() {
	if err := lite.db.Close(); err != nil {
		lite.logger.Error().Err(err).Msg("could not close database")
	}
}

func (lite *Store) FinancialRows(ctx context.Context, symbols []string, years []int) ([]*store.FinancialRow, error) {
	result := make([]*store.FinancialRow, 0, len(symbols)*len(years))
	if len(symbols) == 0 || len(years) == 0 {
		return result, nil
	}

	args := make([]any, 0, len(symbols)+len(years))
	for _, symbol := range symbols {
		args = append(args, symbol)
	}
	for _, year := range years {
		args = append(args, year)
	}

	query := `SELECT id, symbol, year, payload, updated_at FROM financial_cache WHERE symbol IN (` +
		placeholders(len(symbols)) + `) AND year IN (` + placeholders(len(years)) + `) ORDER BY symbol, year, id`

	rows, err := lite.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row     store.FinancialRow
			updated int64
		)

		if err := rows.Scan(&row.ID, &row.Symbol, &row.Year, &row.Payload, &updated); err != nil {
			return nil, err
		}

		row.UpdatedAt = time.UnixMilli(updated)
		result = append(result, &row)
	}

	return result, rows.Err()
}

func (lite *Store) KPIRows(ctx context.Context, filter store.KPIFilter) ([]*store.KPIRow, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, len(filter.Symbols)+len(filter.Years)+1)

	if len(filter.Symbols) > 0 {
		where = append(where, "symbol IN ("+placeholders(len(filter.Symbols))+")")
		for _, symbol := range filter.Symbols {
			args = append(args, symbol)
		}
	}

	if len(filter.Years) > 0 {
		where = append(where, "year IN ("+placeholders(len(filter.Years))+")")
		for _, year := range filter.Years {
			args = append(args, year)
		}
	}

	if filter.Description.Valid {
		where = append(where, "description = ?")
		args = append(args, filter.Description.String)
	}

	query := `SELECT id, symbol, description, year, payload, created_at FROM kpi_cache`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY symbol, year, id"

	rows, err := lite.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*store.KPIRow, 0)
	for rows.Next() {
		var (
			row     store.KPIRow
			created int64
		)

		if err := rows.Scan(&row.ID, &row.Symbol, &row.Description, &row.Year, &row.Payload, &created); err != nil {
			return nil, err
		}

		row.CreatedAt = time.UnixMilli(created)
		result = append(result, &row)
	}

	return result, rows.Err()
}

func (lite *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := lite.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(); err != nil {
			if !errors.Is(err, sql.ErrTxDone) {
				lite.logger.Error().Err(err).Msg("could not rollback transaction")
			}
		}
	}()

	if err := fn(ctx, &liteTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (lite *Store) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{}

	var updated int64
	err := lite.db.QueryRowContext(ctx, `SELECT count(*), count(DISTINCT symbol), coalesce(min(year), 0), coalesce(max(year), 0), coalesce(max(updated_at), 0) FROM financial_cache`).Scan(
		&stats.FinancialRecords, &stats.Symbols, &stats.MinYear, &stats.MaxYear, &updated)
	if err != nil {
		return nil, err
	}

	if updated > 0 {
		stats.LastUpdated = time.UnixMilli(updated)
	}

	if err := lite.db.QueryRowContext(ctx, `SELECT count(*) FROM kpi_cache`).Scan(&stats.KPIRecords); err != nil {
		return nil, err
	}

	return stats, nil
}

type liteTx struct {
	tx *sql.Tx
}

func (t *liteTx) FinancialPayload(ctx context.Context, symbol string, year int) (string, bool, error) {
	var payload string
	err := t.tx.QueryRowContext(ctx, `SELECT payload FROM financial_cache WHERE symbol = ? AND year = ? ORDER BY id LIMIT 1`, symbol, year).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return payload, true, nil
}

func (t *liteTx) InsertFinancial(ctx context.Context, symbol string, year int, payload string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO financial_cache (symbol, year, payload, updated_at) VALUES (?, ?, ?, ?)`, symbol, year, payload, time.Now().UnixMilli())
	return err
}

func (t *liteTx) UpdateFinancial(ctx context.Context, symbol string, year int, payload string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE financial_cache SET payload = ?, updated_at = ? WHERE symbol = ? AND year = ?`, payload, time.Now().UnixMilli(), symbol, year)
	return err
}

func (t *liteTx) KPIExists(ctx context.Context, symbol string, year int) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `SELECT count(*) FROM kpi_cache WHERE symbol = ? AND year = ?`, symbol, year).Scan(&count)
	return count > 0, err
}

func (t *liteTx) InsertKPI(ctx context.Context, symbol string, description null.String, year int, payload string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO kpi_cache (symbol, description, year, payload, created_at) VALUES (?, ?, ?, ?, ?)`, symbol, description, year, payload, time.Now().UnixMilli())
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
