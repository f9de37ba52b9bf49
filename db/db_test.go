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
package db_test

import (
	"context"
	"os"

	"github.com/guregu/null/v6"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/penny-vault/pvkpi/db"
	"github.com/penny-vault/pvkpi/store"
)

var _ = Describe("ParseURL", func() {
	DescribeTable("backend selection",
		func(url string, backend db.Backend, dsn string) {
			b, d, err := db.ParseURL(url)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(backend))
			Expect(d).To(Equal(dsn))
		},
		Entry("postgres", "postgres://u:p@localhost/pvkpi", db.Postgres, "postgres://u:p@localhost/pvkpi"),
		Entry("postgresql", "postgresql://localhost/pvkpi", db.Postgres, "postgresql://localhost/pvkpi"),
		Entry("sqlite url", "sqlite://cache.db", db.SQLite, "cache.db"),
		Entry("sqlite memory", "sqlite::memory:", db.SQLite, ":memory:"),
		Entry("bare path", "/var/lib/pvkpi/cache.db", db.SQLite, "/var/lib/pvkpi/cache.db"),
	)

	It("rejects unknown schemes", func() {
		_, _, err := db.ParseURL("mysql://localhost/pvkpi")
		Expect(err).To(MatchError(store.ErrUnsupportedURL))
	})
})

var _ = Describe("SQLite store", func() {
	var (
		ctx   context.Context
		cache store.Store
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		cache, err = db.Open(ctx, "sqlite::memory:", zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cache.Close()
	})

	It("creates the cache tables on open", func() {
		stats, err := cache.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.FinancialRecords).To(Equal(0))
		Expect(stats.KPIRecords).To(Equal(0))
	})

	It("commits writes made inside a transaction", func() {
		err := cache.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.InsertFinancial(ctx, "ACME", 2023, `{"year":2023}`); err != nil {
				return err
			}
			return tx.InsertKPI(ctx, "ACME", null.StringFrom("Acme Corp"), 2023, `{"year":2023}`)
		})
		Expect(err).NotTo(HaveOccurred())

		rows, err := cache.FinancialRows(ctx, []string{"ACME"}, []int{2023})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Payload).To(Equal(`{"year":2023}`))

		kpis, err := cache.KPIRows(ctx, store.KPIFilter{Description: null.StringFrom("Acme Corp")})
		Expect(err).NotTo(HaveOccurred())
		Expect(kpis).To(HaveLen(1))
		Expect(kpis[0].Description.String).To(Equal("Acme Corp"))
	})

	It("rolls back every write when the callback fails", func() {
		err := cache.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.InsertFinancial(ctx, "ACME", 2023, `{"year":2023}`); err != nil {
				return err
			}
			return context.Canceled
		})
		Expect(err).To(MatchError(context.Canceled))

		rows, err := cache.FinancialRows(ctx, []string{"ACME"}, []int{2023})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(BeEmpty())
	})

	It("reports existing payloads inside a transaction", func() {
		Expect(cache.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertFinancial(ctx, "ACME", 2022, `{"year":2022}`)
		})).To(Succeed())

		Expect(cache.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			payload, ok, err := tx.FinancialPayload(ctx, "ACME", 2022)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(payload).To(Equal(`{"year":2022}`))

			_, ok, err = tx.FinancialPayload(ctx, "ACME", 2021)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			exists, err := tx.KPIExists(ctx, "ACME", 2022)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
			return nil
		})).To(Succeed())
	})
})

var _ = Describe("PostgreSQL store", func() {
	It("migrates and opens the database", func() {
		url := os.Getenv("PVKPI_TEST_DATABASE_URL")
		if url == "" {
			Skip("PVKPI_TEST_DATABASE_URL is not set")
		}

		ctx := context.Background()
		Expect(db.Migrate(url)).To(Succeed())

		cache, err := db.Open(ctx, url, zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())
		defer cache.Close()

		_, err = cache.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
	})
})
