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
package backfill_test

import (
	"context"
	"errors"
	"sync"

	"github.com/guregu/null/v6"

	"github.com/penny-vault/pvkpi/backfill"
	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/library"
	"github.com/penny-vault/pvkpi/provider"
)

var errUpstream = errors.New("upstream unavailable")

// fakeProvider serves records from a fixed table and records each call
type fakeProvider struct {
	mu sync.Mutex

	records map[string]map[int]*data.FinancialRecord
	calls   [][]int
	fail    bool
	// override, when set, replaces the records returned for a call
	override []*data.FinancialRecord
	block    chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{records: make(map[string]map[int]*data.FinancialRecord)}
}

func (fp *fakeProvider) add(symbol string, year int, revenue float64) {
	if _, ok := fp.records[symbol]; !ok {
		fp.records[symbol] = make(map[int]*data.FinancialRecord)
	}
	fp.records[symbol][year] = &data.FinancialRecord{
		Symbol:       symbol,
		Sector:       "Industrials",
		Industry:     "Machinery",
		Year:         year,
		TotalRevenue: null.FloatFrom(revenue),
		GrossProfit:  null.FloatFrom(revenue / 4),
	}
}

func (fp *fakeProvider) Name() string {
	return "fake"
}

func (fp *fakeProvider) FetchYears(ctx context.Context, symbol string, years []int, meta provider.Meta) ([]*data.FinancialRecord, error) {
	fp.mu.Lock()
	fp.calls = append(fp.calls, append([]int(nil), years...))
	fp.mu.Unlock()

	if fp.block != nil {
		<-fp.block
	}

	if fp.fail {
		return []*data.FinancialRecord{}, &provider.FetchError{Provider: "fake", Symbol: symbol, Kind: provider.KindUpstream, Err: errUpstream}
	}

	if fp.override != nil {
		return fp.override, nil
	}

	result := make([]*data.FinancialRecord, 0, len(years))
	for _, year := range years {
		if record, ok := fp.records[symbol][year]; ok {
			cp := record.Clone()
			cp.Description = meta.Description
			cp.StockExchange = meta.StockExchange
			result = append(result, cp)
		}
	}

	return result, nil
}

func (fp *fakeProvider) callCount() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.calls)
}

// failingSaves wraps a library and fails every financial save
type failingSaves struct {
	*library.Library
}

func (fs *failingSaves) Save(ctx context.Context, symbol string, years []int, records []*data.FinancialRecord) (library.SaveResult, error) {
	return library.SaveResult{}, library.ErrPersistence
}

var _ backfill.Cache = (*failingSaves)(nil)
