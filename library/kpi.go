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
	"context"
	"fmt"

	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/normalize"
	"github.com/penny-vault/pvkpi/store"
)

// SaveKPIs stores each KPI record unless a KPI row for its (symbol, year)
// already exists. The existing row wins even when its description differs
// from the incoming one. All inserts commit together.
func (myLibrary *Library) SaveKPIs(ctx context.Context, records []*data.KPIRecord) (SaveResult, error) {
	result := SaveResult{}

	err := myLibrary.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		result = SaveResult{}
		for _, record := range records {
			if record == nil || record.Symbol == "" {
				result.Skipped++
				continue
			}

			subLog := myLibrary.logger.With().Str("Symbol", record.Symbol).Int("Year", record.Year).Logger()

			exists, err := tx.KPIExists(ctx, record.Symbol, record.Year)
			if err != nil {
				return err
			}

			if exists {
				subLog.Info().Msg("kpi record already stored; insert skipped")
				result.Unchanged++
				continue
			}

			payload, err := normalize.Marshal(kpiPayload(record))
			if err != nil {
				return err
			}

			if err := tx.InsertKPI(ctx, record.Symbol, record.Description, record.Year, payload); err != nil {
				return err
			}

			subLog.Info().Msg("inserted kpi record")
			result.Inserted++
		}

		return nil
	})

	if err != nil {
		myLibrary.logger.Error().Err(err).Msg("could not save kpi records")
		return SaveResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return result, nil
}

// LoadKPI returns the stored KPI record for (symbol, year). When description
// is valid only a row with that description matches. A nil record with a nil
// error means nothing is stored.
func (myLibrary *Library) LoadKPI(ctx context.Context, symbol string, year int, description null.String) (*data.KPIRecord, error) {
	rows, err := myLibrary.store.KPIRows(ctx, store.KPIFilter{
		Symbols:     []string{symbol},
		Years:       []int{year},
		Description: description,
	})
	if err != nil {
		myLibrary.logger.Error().Err(err).Str("Symbol", symbol).Int("Year", year).Msg("could not load kpi record")
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	record, err := decodeKPI(rows[0])
	if err != nil {
		myLibrary.logger.Error().Err(err).Str("Symbol", symbol).Int("Year", year).Msg("could not parse cached kpi payload")
		return nil, err
	}

	return record, nil
}

// LoadKPIs returns every stored KPI record for the given symbols and years,
// first stored row per key, keyed by (symbol, year)
func (myLibrary *Library) LoadKPIs(ctx context.Context, symbols []string, years []int) (map[data.Key]*data.KPIRecord, error) {
	result := make(map[data.Key]*data.KPIRecord)
	if len(symbols) == 0 || len(years) == 0 {
		return result, nil
	}

	records, err := myLibrary.loadKPIRows(ctx, store.KPIFilter{Symbols: symbols, Years: years})
	if err != nil {
		return result, err
	}

	for _, record := range records {
		key := data.Key{Symbol: record.Symbol, Year: record.Year}
		if _, ok := result[key]; !ok {
			result[key] = record
		}
	}

	return result, nil
}

// LoadAllKPIs returns every stored KPI record, optionally restricted to
// symbols. Rows whose payload cannot be parsed are skipped.
func (myLibrary *Library) LoadAllKPIs(ctx context.Context, symbols ...string) ([]*data.KPIRecord, error) {
	return myLibrary.loadKPIRows(ctx, store.KPIFilter{Symbols: symbols})
}

func (myLibrary *Library) loadKPIRows(ctx context.Context, filter store.KPIFilter) ([]*data.KPIRecord, error) {
	rows, err := myLibrary.store.KPIRows(ctx, filter)
	if err != nil {
		myLibrary.logger.Error().Err(err).Msg("could not load kpi records")
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	records := make([]*data.KPIRecord, 0, len(rows))
	for _, row := range rows {
		record, err := decodeKPI(row)
		if err != nil {
			myLibrary.logger.Error().Err(err).Str("Symbol", row.Symbol).Int("Year", row.Year).Msg("could not parse cached kpi payload")
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// kpiPayload is the stored form of a KPI record; the key and description
// live in their own columns
func kpiPayload(record *data.KPIRecord) map[string]any {
	m := record.ToMap()
	delete(m, "symbol")
	delete(m, "year")
	delete(m, "description")
	return m
}

func decodeKPI(row *store.KPIRow) (*data.KPIRecord, error) {
	record, err := data.DecodeKPIRecord([]byte(row.Payload))
	if err != nil {
		return nil, err
	}

	record.Symbol = row.Symbol
	record.Year = row.Year
	record.Description = row.Description

	return record, nil
}
