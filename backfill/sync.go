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
package backfill

import (
	"context"
	"sort"
	"time"

	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/exchange"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/penny-vault/pvkpi/provider"
)

// SyncOptions control a directory wide sync
type SyncOptions struct {
	ForceRefresh bool

	// Pacer, when set, is waited on between companies
	Pacer *provider.Pacer

	// Progress, when set, is called after each company
	Progress func(company *data.Company, outcome *Outcome)
}

// SyncReport summarizes a directory wide sync
type SyncReport struct {
	StartTime time.Time
	EndTime   time.Time
	Companies int
	Cached    int
	Fetched   int
	Discarded int
	Failed    []string
}

// SyncDirectory backfills years for every company of every exchange in dir
// and returns the records served, de-duplicated on (symbol, year) and sorted
// by symbol then year. It stops at the first persistence failure.
func (orchestrator *Orchestrator) SyncDirectory(ctx context.Context, dir *exchange.Directory, years []int, opts SyncOptions) ([]*data.FinancialRecord, *SyncReport, error) {
	report := &SyncReport{StartTime: time.Now()}
	defer func() {
		report.EndTime = time.Now()
	}()

	seen := make(map[data.Key]bool)
	records := make([]*data.FinancialRecord, 0)

	companies := dir.All()
	for idx, company := range companies {
		if err := ctx.Err(); err != nil {
			return sortRecords(records), report, err
		}

		outcome, err := orchestrator.Backfill(ctx, company.Ticker, years, Options{
			Description:   company.Description,
			StockExchange: company.StockExchange,
			ForceRefresh:  opts.ForceRefresh,
		})

		report.Companies++
		report.Cached += outcome.Cached
		report.Fetched += outcome.Fetched
		report.Discarded += outcome.Discarded
		if outcome.FetchErr != nil {
			report.Failed = append(report.Failed, company.Ticker)
		}

		if opts.Progress != nil {
			opts.Progress(company, outcome)
		}

		for _, record := range outcome.Records {
			if record == nil || record.Symbol == "" {
				continue
			}

			key := record.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			records = append(records, record)
		}

		if err != nil {
			return sortRecords(records), report, err
		}

		if idx < len(companies)-1 && outcome.State != AllCached {
			if err := opts.Pacer.Delay(ctx); err != nil {
				return sortRecords(records), report, err
			}
		}
	}

	return sortRecords(records), report, nil
}

func sortRecords(records []*data.FinancialRecord) []*data.FinancialRecord {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Symbol != records[j].Symbol {
			return records[i].Symbol < records[j].Symbol
		}
		return records[i].Year < records[j].Year
	})
	return records
}

// KPIs returns the KPI records of every (symbol, year) pair that can be
// served, in symbol then year order of the arguments. Pairs without a stored
// KPI record are computed from their financial records, backfilled as
// needed, and stored. Existing KPI records are never recomputed.
func (orchestrator *Orchestrator) KPIs(ctx context.Context, symbols []string, years []int) ([]*data.KPIRecord, error) {
	stored, err := orchestrator.cache.LoadKPIs(ctx, symbols, years)
	if err != nil {
		orchestrator.logger.Warn().Err(err).Msg("kpi lookup failed; recomputing every pair")
		stored = make(map[data.Key]*data.KPIRecord)
	}

	for _, symbol := range symbols {
		missing := make([]int, 0, len(years))
		for _, year := range years {
			if _, ok := stored[data.Key{Symbol: symbol, Year: year}]; !ok {
				missing = append(missing, year)
			}
		}

		if len(missing) == 0 {
			continue
		}

		records, err := orchestrator.GetOrFetch(ctx, symbol, missing, Options{})
		if err != nil {
			return nil, err
		}

		table := kpi.Compute(records...)
		if table.Len() == 0 {
			orchestrator.logger.Warn().Str("Symbol", symbol).Ints("Years", missing).Msg("no financial data to compute kpis from")
			continue
		}

		for _, row := range table.Rows {
			row.Symbol = symbol
		}

		if _, err := orchestrator.cache.SaveKPIs(ctx, table.Rows); err != nil {
			return nil, err
		}

		for _, row := range table.Rows {
			stored[data.Key{Symbol: symbol, Year: row.Year}] = row
		}
	}

	result := make([]*data.KPIRecord, 0, len(symbols)*len(years))
	for _, symbol := range symbols {
		for _, year := range years {
			if record, ok := stored[data.Key{Symbol: symbol, Year: year}]; ok {
				result = append(result, record)
			}
		}
	}

	return result, nil
}
