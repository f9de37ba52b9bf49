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
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/penny-vault/pvkpi/store"
	"github.com/penny-vault/pvkpi/store/postgres"
	"github.com/penny-vault/pvkpi/store/sqlite"
	"github.com/rs/zerolog"
)

type Backend string

const (
	Postgres Backend = "postgres"
	SQLite   Backend = "sqlite"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported database backend")
)

// ParseURL determines the backend for databaseURL and returns the connection
// string the backend driver expects. postgres:// and postgresql:// select
// PostgreSQL; sqlite:// URLs and bare file paths select SQLite.
func ParseURL(databaseURL string) (Backend, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Postgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return SQLite, strings.TrimPrefix(databaseURL, "sqlite://"), nil
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return SQLite, strings.TrimPrefix(databaseURL, "sqlite:"), nil
	case strings.Contains(databaseURL, "://"), databaseURL == "":
		return "", "", fmt.Errorf("%w: %q", store.ErrUnsupportedURL, databaseURL)
	default:
		return SQLite, databaseURL, nil
	}
}

// Open connects to the cache database at databaseURL. SQLite databases are
// migrated on open; PostgreSQL databases are migrated with Migrate.
func Open(ctx context.Context, databaseURL string, logger zerolog.Logger) (store.Store, error) {
	backend, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case Postgres:
		return postgres.New(ctx, dsn, logger)
	case SQLite:
		lite, err := sqlite.New(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}

		if err := MigrateSQLite(lite.DB()); err != nil {
			lite.Close()
			return nil, err
		}

		return lite, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}
