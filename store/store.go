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

// Package store defines the persistent cache of raw financial records and
// computed KPI records. Backends live in the postgres and sqlite
// subpackages; nothing outside the library package should use them directly.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/guregu/null/v6"
)

var (
	ErrUnsupportedURL = errors.New("unsupported database url")
)

// FinancialRow is a stored raw financial payload
type FinancialRow struct {
	ID        int64     `db:"id"`
	Symbol    string    `db:"symbol"`
	Year      int       `db:"year"`
	Payload   string    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

// KPIRow is a stored KPI payload
type KPIRow struct {
	ID          int64       `db:"id"`
	Symbol      string      `db:"symbol"`
	Description null.String `db:"description"`
	Year        int         `db:"year"`
	Payload     string      `db:"payload"`
	CreatedAt   time.Time   `db:"created_at"`
}

// KPIFilter restricts a KPI query; zero values match everything
type KPIFilter struct {
	Symbols     []string
	Years       []int
	Description null.String
}

// Stats summarizes the contents of the store
type Stats struct {
	FinancialRecords int
	KPIRecords       int
	Symbols          int
	MinYear          int
	MaxYear          int
	LastUpdated      time.Time
}

// Store is the session provider handed to the cache accessor. Reads run on
// their own connection; writes happen inside WithTx.
type Store interface {
	// FinancialRows returns every stored financial row whose key lies in the
	// cross product of symbols and years, ordered by symbol, year and id
	FinancialRows(ctx context.Context, symbols []string, years []int) ([]*FinancialRow, error)

	// KPIRows returns stored KPI rows matching filter ordered by symbol, year
	// and id
	KPIRows(ctx context.Context, filter KPIFilter) ([]*KPIRow, error)

	// WithTx runs fn inside a single transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise; the underlying
	// connection is released on every path.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Stats(ctx context.Context) (*Stats, error)

	Close()
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// FinancialPayload returns the stored payload for (symbol, year) and
	// whether one exists
	FinancialPayload(ctx context.Context, symbol string, year int) (string, bool, error)
	InsertFinancial(ctx context.Context, symbol string, year int, payload string) error
	UpdateFinancial(ctx context.Context, symbol string, year int, payload string) error

	// KPIExists reports whether any KPI row is stored for (symbol, year)
	KPIExists(ctx context.Context, symbol string, year int) (bool, error)
	InsertKPI(ctx context.Context, symbol string, description null.String, year int, payload string) error
}
