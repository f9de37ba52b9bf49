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
package library

import (
	"errors"

	"github.com/penny-vault/pvkpi/store"
	"github.com/rs/zerolog"
)

var (
	// ErrPersistence wraps every failure to write to the cache. A write
	// failure rolls back the whole batch.
	ErrPersistence = errors.New("could not persist to cache")

	// ErrLoad wraps failures of a whole cache query
	ErrLoad = errors.New("could not load from cache")
)

// Library is the cache accessor: every read and write of cached financial
// and KPI records goes through it.
type Library struct {
	Name string

	store  store.Store
	logger zerolog.Logger
}

// New creates a library over the given store
func New(cache store.Store, logger zerolog.Logger) *Library {
	return &Library{
		Name:   "pvkpi",
		store:  cache,
		logger: logger.With().Str("Component", "library").Logger(),
	}
}

// SaveResult counts what a save operation did with each input
type SaveResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
}

// Written returns the number of rows inserted or updated
func (result SaveResult) Written() int {
	return result.Inserted + result.Updated
}

// Close releases the underlying store
func (myLibrary *Library) Close() {
	myLibrary.store.Close()
}
