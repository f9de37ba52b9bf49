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

// Package backfill serves financial records cache-first: years already in
// the cache are returned as stored, only the missing years are fetched
// upstream, and validated fetched records are written back to the cache.
//
// A call never retries. A year that could not be fetched, or whose fetched
// record failed validation, is returned as nil and will be fetched again by
// the next call. Only persistence failures are returned as errors.
package backfill

import (
	"context"
	"fmt"

	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/library"
	"github.com/penny-vault/pvkpi/provider"
	"github.com/rs/zerolog"
)

// Cache is the subset of the cache accessor used by the orchestrator
type Cache interface {
	LoadOne(ctx context.Context, symbol string, years []int) ([]*data.FinancialRecord, error)
	Save(ctx context.Context, symbol string, years []int, records []*data.FinancialRecord) (library.SaveResult, error)
	LoadKPIs(ctx context.Context, symbols []string, years []int) (map[data.Key]*data.KPIRecord, error)
	SaveKPIs(ctx context.Context, records []*data.KPIRecord) (library.SaveResult, error)
}

// Options describe a single request
type Options struct {
	// Description and StockExchange are stamped onto every returned record
	// when set
	Description   string
	StockExchange string

	// ForceRefresh fetches every requested year, cached or not. Fetched
	// records replace the cached ones in the result and in the cache.
	ForceRefresh bool
}

// Outcome reports what a Backfill call did
type Outcome struct {
	// Records has one slot per requested year in request order; nil slots
	// could not be served
	Records []*data.FinancialRecord

	Cached    int
	Fetched   int
	Discarded int

	// FetchErr is the upstream error, if any, that left slots empty
	FetchErr error

	Saved library.SaveResult
	State State
}

// Missing returns the requested years that have no record
func (outcome *Outcome) Missing(years []int) []int {
	missing := make([]int, 0)
	for idx, record := range outcome.Records {
		if record == nil && idx < len(years) {
			missing = append(missing, years[idx])
		}
	}
	return missing
}

// Orchestrator coordinates the cache and the upstream provider
type Orchestrator struct {
	cache    Cache
	provider provider.Provider
	logger   zerolog.Logger
}

// New creates an orchestrator reading and writing through cache and
// fetching misses from fetcher
func New(cache Cache, fetcher provider.Provider, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		provider: fetcher,
		logger:   logger.With().Str("Component", "backfill").Logger(),
	}
}

// GetOrFetch returns one record per requested year in the order requested,
// nil where no record could be served. The returned error is non-nil only
// when validated records could not be written to the cache; the records are
// returned in that case as well.
func (orchestrator *Orchestrator) GetOrFetch(ctx context.Context, symbol string, years []int, opts Options) ([]*data.FinancialRecord, error) {
	outcome, err := orchestrator.Backfill(ctx, symbol, years, opts)
	return outcome.Records, err
}

// Backfill is GetOrFetch with a report of every step taken
func (orchestrator *Orchestrator) Backfill(ctx context.Context, symbol string, years []int, opts Options) (*Outcome, error) {
	subLog := orchestrator.logger.With().Str("Symbol", symbol).Ints("Years", years).Logger()
	outcome := &Outcome{State: Idle}

	// lookup
	records, err := orchestrator.cache.LoadOne(ctx, symbol, years)
	if err != nil {
		subLog.Warn().Err(err).Msg("cache lookup failed; treating every year as missing")
		records = make([]*data.FinancialRecord, len(years))
	}

	outcome.Records = records
	outcome.State = LookupDone

	positions := make([]int, 0, len(years))
	for idx, record := range records {
		if record != nil {
			stamp(record, opts)
			outcome.Cached++
			if !opts.ForceRefresh {
				continue
			}
		}
		positions = append(positions, idx)
	}

	// decide
	if len(positions) == 0 {
		subLog.Debug().Msg("every requested year is cached")
		outcome.State = AllCached
		return outcome, nil
	}

	fetchYears := make([]int, len(positions))
	for idx, pos := range positions {
		fetchYears[idx] = years[pos]
	}

	// fetch
	outcome.State = FetchInFlight
	subLog.Info().Ints("FetchYears", fetchYears).Bool("ForceRefresh", opts.ForceRefresh).Msg("fetching missing years")

	fetched, err := orchestrator.provider.FetchYears(ctx, symbol, fetchYears, provider.Meta{
		Description:   opts.Description,
		StockExchange: opts.StockExchange,
	})
	if err != nil {
		outcome.FetchErr = err
		subLog.Warn().Err(err).Msg("upstream fetch failed; missing years stay empty")
	}

	// validate
	valid := make([]*data.FinancialRecord, len(positions))
	for idx, record := range fetched {
		if idx >= len(fetchYears) {
			subLog.Warn().Int("Position", idx).Msg("provider returned more records than requested; record discarded")
			outcome.Discarded++
			continue
		}

		expected := fetchYears[idx]
		if record.IsEmpty() {
			subLog.Warn().Int("Year", expected).Msg("fetched record is empty; record discarded")
			outcome.Discarded++
			continue
		}

		if record.Year != expected {
			subLog.Warn().Int("Year", expected).Int("RecordYear", record.Year).Msg("year mismatch in fetched record; record discarded")
			outcome.Discarded++
			continue
		}

		stamp(record, opts)
		valid[idx] = record
	}
	outcome.State = Validated

	// merge
	saveYears := make([]int, 0, len(positions))
	saveRecords := make([]*data.FinancialRecord, 0, len(positions))
	for idx, pos := range positions {
		if valid[idx] == nil {
			continue
		}

		if outcome.Records[pos] != nil {
			outcome.Cached--
		}

		outcome.Records[pos] = valid[idx]
		outcome.Fetched++
		saveYears = append(saveYears, fetchYears[idx])
		saveRecords = append(saveRecords, valid[idx])
	}
	outcome.State = Merged

	// persist
	if len(saveRecords) == 0 {
		subLog.Info().Msg("no valid fetched records to save")
		outcome.State = Persisted
		return outcome, nil
	}

	saved, err := orchestrator.cache.Save(ctx, symbol, saveYears, saveRecords)
	outcome.Saved = saved
	if err != nil {
		subLog.Error().Err(err).Msg("could not save fetched records")
		return outcome, fmt.Errorf("backfill %s: %w", symbol, err)
	}

	outcome.State = Persisted
	return outcome, nil
}

func stamp(record *data.FinancialRecord, opts Options) {
	if opts.Description != "" {
		record.Description = opts.Description
	}
	if opts.StockExchange != "" {
		record.StockExchange = opts.StockExchange
	}
}
