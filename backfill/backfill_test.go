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
	"time"

	"github.com/guregu/null/v6"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/penny-vault/pvkpi/backfill"
	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/db"
	"github.com/penny-vault/pvkpi/exchange"
	"github.com/penny-vault/pvkpi/library"
	"github.com/penny-vault/pvkpi/provider"
	"github.com/penny-vault/pvkpi/store"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx          context.Context
		cache        store.Store
		myLibrary    *library.Library
		fetcher      *fakeProvider
		orchestrator *backfill.Orchestrator
	)

	seed := func(symbol string, year int, revenue float64) {
		_, err := myLibrary.Save(ctx, symbol, []int{year}, []*data.FinancialRecord{{
			Symbol:       symbol,
			Year:         year,
			TotalRevenue: null.FloatFrom(revenue),
		}})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		cache, err = db.Open(ctx, "sqlite::memory:", zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())

		myLibrary = library.New(cache, zerolog.Nop())
		fetcher = newFakeProvider()
		orchestrator = backfill.New(myLibrary, fetcher, zerolog.Nop())
	})

	AfterEach(func() {
		cache.Close()
	})

	It("does not call the provider when every year is cached", func() {
		seed("ACME", 2021, 1)
		seed("ACME", 2022, 2)

		outcome, err := orchestrator.Backfill(ctx, "ACME", []int{2021, 2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(fetcher.callCount()).To(Equal(0))
		Expect(outcome.State).To(Equal(backfill.AllCached))
		Expect(outcome.Cached).To(Equal(2))
		Expect(outcome.Records[0].TotalRevenue.Float64).To(Equal(1.0))
		Expect(outcome.Records[1].TotalRevenue.Float64).To(Equal(2.0))
	})

	It("fetches only the missing years and caches them", func() {
		seed("ACME", 2021, 1)
		fetcher.add("ACME", 2021, 100)
		fetcher.add("ACME", 2022, 200)

		outcome, err := orchestrator.Backfill(ctx, "ACME", []int{2021, 2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(fetcher.calls).To(Equal([][]int{{2022}}))
		Expect(outcome.State).To(Equal(backfill.Persisted))
		Expect(outcome.Cached).To(Equal(1))
		Expect(outcome.Fetched).To(Equal(1))
		Expect(outcome.Records[0].TotalRevenue.Float64).To(Equal(1.0))
		Expect(outcome.Records[1].TotalRevenue.Float64).To(Equal(200.0))
		Expect(outcome.Saved.Inserted).To(Equal(1))

		cached, err := myLibrary.LoadOne(ctx, "ACME", []int{2022})
		Expect(err).NotTo(HaveOccurred())
		Expect(cached[0]).NotTo(BeNil())
		Expect(cached[0].TotalRevenue.Float64).To(Equal(200.0))
	})

	It("leaves a slot empty when the provider returns nothing", func() {
		seed("ACME", 2021, 1)

		records, err := orchestrator.GetOrFetch(ctx, "ACME", []int{2021, 2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0]).NotTo(BeNil())
		Expect(records[1]).To(BeNil())
	})

	It("absorbs provider failures into empty slots", func() {
		seed("ACME", 2021, 1)
		fetcher.fail = true

		outcome, err := orchestrator.Backfill(ctx, "ACME", []int{2021, 2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.FetchErr).To(MatchError(errUpstream))
		Expect(outcome.Records[0]).NotTo(BeNil())
		Expect(outcome.Records[1]).To(BeNil())
		Expect(outcome.Missing([]int{2021, 2022})).To(Equal([]int{2022}))
	})

	It("re-attempts the fetch on the next call", func() {
		fetcher.fail = true
		_, err := orchestrator.GetOrFetch(ctx, "ACME", []int{2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())

		fetcher.fail = false
		fetcher.add("ACME", 2022, 200)
		records, err := orchestrator.GetOrFetch(ctx, "ACME", []int{2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(records[0]).NotTo(BeNil())
		Expect(fetcher.callCount()).To(Equal(2))
	})

	It("discards fetched records whose year does not match", func() {
		fetcher.override = []*data.FinancialRecord{{Symbol: "ACME", Year: 2020, TotalRevenue: null.FloatFrom(9)}}

		outcome, err := orchestrator.Backfill(ctx, "ACME", []int{2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome.Discarded).To(Equal(1))
		Expect(outcome.Records).To(Equal([]*data.FinancialRecord{nil}))

		stats, err := cache.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.FinancialRecords).To(Equal(0))
	})

	It("validates fetched records against the year at their position", func() {
		fetcher.add("ACME", 2022, 200)

		outcome, err := orchestrator.Backfill(ctx, "ACME", []int{2021, 2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(fetcher.calls).To(Equal([][]int{{2021, 2022}}))
		Expect(outcome.Discarded).To(Equal(1))
		Expect(outcome.Records).To(Equal([]*data.FinancialRecord{nil, nil}))
	})

	It("stamps the description and exchange onto every record", func() {
		seed("ACME", 2021, 1)
		fetcher.add("ACME", 2022, 200)

		records, err := orchestrator.GetOrFetch(ctx, "ACME", []int{2021, 2022}, backfill.Options{Description: "Acme Corp", StockExchange: "NYSE"})
		Expect(err).NotTo(HaveOccurred())
		for _, record := range records {
			Expect(record.Description).To(Equal("Acme Corp"))
			Expect(record.StockExchange).To(Equal("NYSE"))
		}
	})

	It("fetches every year on a forced refresh", func() {
		seed("ACME", 2021, 1)
		fetcher.add("ACME", 2021, 100)
		fetcher.add("ACME", 2022, 200)

		outcome, err := orchestrator.Backfill(ctx, "ACME", []int{2021, 2022}, backfill.Options{ForceRefresh: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(fetcher.calls).To(Equal([][]int{{2021, 2022}}))
		Expect(outcome.Fetched).To(Equal(2))
		Expect(outcome.Cached).To(Equal(0))
		Expect(outcome.Records[0].TotalRevenue.Float64).To(Equal(100.0))
		Expect(outcome.Saved).To(Equal(library.SaveResult{Inserted: 1, Updated: 1}))
	})

	It("returns the merged records when the cache write fails", func() {
		fetcher.add("ACME", 2022, 200)
		failing := backfill.New(&failingSaves{Library: myLibrary}, fetcher, zerolog.Nop())

		outcome, err := failing.Backfill(ctx, "ACME", []int{2022}, backfill.Options{})
		Expect(err).To(MatchError(library.ErrPersistence))
		Expect(outcome.State).To(Equal(backfill.Merged))
		Expect(outcome.Records[0]).NotTo(BeNil())
		Expect(outcome.Records[0].TotalRevenue.Float64).To(Equal(200.0))
	})

	It("reports a timed out fetch instead of hanging", func() {
		fetcher.block = make(chan struct{})
		defer close(fetcher.block)

		bounded := backfill.New(myLibrary, provider.WithTimeout(fetcher, 20*time.Millisecond), zerolog.Nop())
		outcome, err := bounded.Backfill(ctx, "ACME", []int{2022}, backfill.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider.IsTimeout(outcome.FetchErr)).To(BeTrue())
		Expect(outcome.Records).To(Equal([]*data.FinancialRecord{nil}))
	})

	Describe("SyncDirectory", func() {
		It("returns every served record sorted by symbol and year", func() {
			fetcher.add("INIT", 2022, 5)
			fetcher.add("INIT", 2021, 4)
			fetcher.add("ACME", 2021, 1)
			fetcher.add("ACME", 2022, 2)

			dir := exchange.New(
				&exchange.Exchange{Label: "NYSE", Companies: []*data.Company{{Ticker: "INIT", Description: "Initech"}, {Ticker: "ACME", Description: "Acme Corp"}}},
				&exchange.Exchange{Label: "NASDAQ", Companies: []*data.Company{{Ticker: "INIT", Description: "Initech"}}},
			)

			records, report, err := orchestrator.SyncDirectory(ctx, dir, []int{2021, 2022}, backfill.SyncOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Companies).To(Equal(3))

			keys := make([]data.Key, len(records))
			for idx, record := range records {
				keys[idx] = record.Key()
			}
			Expect(keys).To(Equal([]data.Key{
				{Symbol: "ACME", Year: 2021},
				{Symbol: "ACME", Year: 2022},
				{Symbol: "INIT", Year: 2021},
				{Symbol: "INIT", Year: 2022},
			}))
		})

		It("never fetches for rows without a ticker", func() {
			dir := exchange.New(&exchange.Exchange{Label: "NYSE", Companies: []*data.Company{{Ticker: "  ", Description: "Placeholder"}}})

			records, report, err := orchestrator.SyncDirectory(ctx, dir, []int{2022}, backfill.SyncOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
			Expect(report.Companies).To(Equal(0))
			Expect(fetcher.callCount()).To(Equal(0))
		})

		It("stops when the cache cannot be written", func() {
			fetcher.add("ACME", 2022, 2)
			fetcher.add("INIT", 2022, 5)
			failing := backfill.New(&failingSaves{Library: myLibrary}, fetcher, zerolog.Nop())

			dir := exchange.New(&exchange.Exchange{Label: "NYSE", Companies: []*data.Company{{Ticker: "ACME"}, {Ticker: "INIT"}}})
			_, report, err := failing.SyncDirectory(ctx, dir, []int{2022}, backfill.SyncOptions{})
			Expect(err).To(MatchError(library.ErrPersistence))
			Expect(report.Companies).To(Equal(1))
		})
	})

	Describe("KPIs", func() {
		It("computes, stores and then reuses KPI records", func() {
			fetcher.add("ACME", 2022, 200)

			records, err := orchestrator.KPIs(ctx, []string{"ACME"}, []int{2022})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].GrossMargin.Float64).To(BeNumerically("~", 0.25, 1e-12))

			stored, err := myLibrary.LoadAllKPIs(ctx, "ACME")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(1))

			calls := fetcher.callCount()
			records, err = orchestrator.KPIs(ctx, []string{"ACME"}, []int{2022})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(fetcher.callCount()).To(Equal(calls))
		})

		It("skips pairs without financial data", func() {
			records, err := orchestrator.KPIs(ctx, []string{"NOPE"}, []int{2022})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})
})
