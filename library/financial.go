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

	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/normalize"
	"github.com/penny-vault/pvkpi/store"
)

// LoadOne returns one slot per requested year, in the order given. Years that
// are not cached, or whose stored payload cannot be parsed, are nil. The
// returned records carry the stored row's year regardless of the year
// embedded in the payload. If the query itself fails every slot is nil and
// the error wraps ErrLoad.
func (myLibrary *Library) LoadOne(ctx context.Context, symbol string, years []int) ([]*data.FinancialRecord, error) {
	result := make([]*data.FinancialRecord, len(years))
	if len(years) == 0 {
		return result, nil
	}

	rows, err := myLibrary.store.FinancialRows(ctx, []string{symbol}, years)
	if err != nil {
		myLibrary.logger.Error().Err(err).Str("Symbol", symbol).Msg("could not load financial records")
		return result, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	byYear := make(map[int]*data.FinancialRecord, len(rows))
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		if seen[row.Year] {
			continue
		}
		seen[row.Year] = true
		byYear[row.Year] = myLibrary.decodeFinancial(row)
	}

	for idx, year := range years {
		if record, ok := byYear[year]; ok && record != nil {
			result[idx] = record.Clone()
		}
	}

	return result, nil
}

// LoadMany returns every cached record in the cross product of symbols and
// years. Keys that are not cached, or cannot be parsed, are absent.
func (myLibrary *Library) LoadMany(ctx context.Context, symbols []string, years []int) (map[data.Key]*data.FinancialRecord, error) {
	result := make(map[data.Key]*data.FinancialRecord)
	if len(symbols) == 0 || len(years) == 0 {
		return result, nil
	}

	rows, err := myLibrary.store.FinancialRows(ctx, symbols, years)
	if err != nil {
		myLibrary.logger.Error().Err(err).Strs("Symbols", symbols).Msg("could not batch load financial records")
		return result, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	for _, row := range rows {
		key := data.Key{Symbol: row.Symbol, Year: row.Year}
		if _, ok := result[key]; ok {
			continue
		}

		if record := myLibrary.decodeFinancial(row); record != nil {
			result[key] = record
		}
	}

	return result, nil
}

func (myLibrary *Library) decodeFinancial(row *store.FinancialRow) *data.FinancialRecord {
	record, err := data.DecodeFinancialRecord([]byte(row.Payload))
	if err != nil {
		myLibrary.logger.Error().Err(err).Str("Symbol", row.Symbol).Int("Year", row.Year).Msg("could not parse cached payload")
		return nil
	}

	record.Year = row.Year
	if record.Symbol == "" {
		record.Symbol = row.Symbol
	}

	return record
}

type pendingSave struct {
	symbol string
	year   int
	record *data.FinancialRecord
}

// Save writes records[i] as the cached value for (symbol, years[i]). Inputs
// with no record, an empty record, or a record whose embedded year differs
// from years[i] are skipped. A record is written only when its canonical
// payload differs from the stored one. All writes commit together; on
// failure nothing is written and the returned error wraps ErrPersistence.
func (myLibrary *Library) Save(ctx context.Context, symbol string, years []int, records []*data.FinancialRecord) (SaveResult, error) {
	pending := make([]pendingSave, len(years))
	for idx, year := range years {
		pending[idx] = pendingSave{symbol: symbol, year: year}
		if idx < len(records) {
			pending[idx].record = records[idx]
		}
	}

	return myLibrary.save(ctx, pending)
}

// SaveMany is the batch form of Save: records[i] is written for
// (symbols[i], years[i]) with the same validation, all in one transaction.
func (myLibrary *Library) SaveMany(ctx context.Context, symbols []string, years []int, records []*data.FinancialRecord) (SaveResult, error) {
	count := min(len(symbols), len(years))
	pending := make([]pendingSave, count)
	for idx := 0; idx < count; idx++ {
		pending[idx] = pendingSave{symbol: symbols[idx], year: years[idx]}
		if idx < len(records) {
			pending[idx].record = records[idx]
		}
	}

	return myLibrary.save(ctx, pending)
}

// SaveRecords writes each record under its own (symbol, year) key
func (myLibrary *Library) SaveRecords(ctx context.Context, records []*data.FinancialRecord) (SaveResult, error) {
	pending := make([]pendingSave, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		pending = append(pending, pendingSave{symbol: record.Symbol, year: record.Year, record: record})
	}

	return myLibrary.save(ctx, pending)
}

func (myLibrary *Library) save(ctx context.Context, pending []pendingSave) (SaveResult, error) {
	result := SaveResult{}
	payloads := make([]string, len(pending))
	valid := make([]bool, len(pending))

	for idx, item := range pending {
		subLog := myLibrary.logger.With().Str("Symbol", item.symbol).Int("Year", item.year).Logger()

		if item.record.IsEmpty() {
			subLog.Debug().Msg("save skipped: no data")
			result.Skipped++
			continue
		}

		if item.record.Year != item.year {
			subLog.Warn().Int("RecordYear", item.record.Year).Msg("year mismatch in record; save skipped")
			result.Skipped++
			continue
		}

		payload, err := normalize.Marshal(item.record.ToMap())
		if err != nil {
			subLog.Warn().Err(err).Msg("could not encode record; save skipped")
			result.Skipped++
			continue
		}

		payloads[idx] = payload
		valid[idx] = true
	}

	if result.Skipped == len(pending) {
		return result, nil
	}

	counts := SaveResult{}
	err := myLibrary.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		counts = SaveResult{}
		for idx, item := range pending {
			if !valid[idx] {
				continue
			}

			subLog := myLibrary.logger.With().Str("Symbol", item.symbol).Int("Year", item.year).Logger()

			stored, ok, err := tx.FinancialPayload(ctx, item.symbol, item.year)
			if err != nil {
				return err
			}

			switch {
			case !ok:
				if err := tx.InsertFinancial(ctx, item.symbol, item.year, payloads[idx]); err != nil {
					return err
				}
				subLog.Info().Msg("inserted financial record")
				counts.Inserted++
			case stored != payloads[idx]:
				if err := tx.UpdateFinancial(ctx, item.symbol, item.year, payloads[idx]); err != nil {
					return err
				}
				subLog.Info().Msg("updated financial record")
				counts.Updated++
			default:
				subLog.Debug().Msg("no change to financial record")
				counts.Unchanged++
			}
		}

		return nil
	})

	if err != nil {
		myLibrary.logger.Error().Err(err).Msg("could not save financial records")
		return SaveResult{Skipped: result.Skipped}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	result.Inserted = counts.Inserted
	result.Updated = counts.Updated
	result.Unchanged = counts.Unchanged

	return result, nil
}
