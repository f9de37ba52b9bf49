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
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*
var migrationFS embed.FS

// Migrate runs database migrations for the cache database at databaseURL
func Migrate(databaseURL string) error {
	backend, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return err
	}

	switch backend {
	case Postgres:
		migrationDir, err := iofs.New(migrationFS, "migrations/postgres")
		if err != nil {
			return err
		}

		migration, err := migrate.NewWithSourceInstance("iofs", migrationDir, pgx5URL(dsn))
		if err != nil {
			return err
		}
		defer migration.Close()

		return up(migration)
	case SQLite:
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		return MigrateSQLite(sqlDB)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}

// MigrateSQLite runs the SQLite migrations against an already open handle.
// The handle is left open.
func MigrateSQLite(sqlDB *sql.DB) error {
	migrationDir, err := iofs.New(migrationFS, "migrations/sqlite")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	migration, err := migrate.NewWithInstance("iofs", migrationDir, "sqlite", driver)
	if err != nil {
		return err
	}

	return up(migration)
}

func up(migration *migrate.Migrate) error {
	err := migration.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// pgx5URL rewrites a postgres connection string to the scheme registered by
// the migrate pgx driver
func pgx5URL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
