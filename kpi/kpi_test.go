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
package kpi_test

import (
	"github.com/guregu/null/v6"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/kpi"
)

var _ = Describe("Compute", func() {
	full := func() *data.FinancialRecord {
		return &data.FinancialRecord{
			Symbol:             "ACME",
			Year:               2023,
			Description:        "Acme Corp",
			TotalRevenue:       null.FloatFrom(100),
			GrossProfit:        null.FloatFrom(40),
			OperatingIncome:    null.FloatFrom(20),
			NetIncome:          null.FloatFrom(10),
			EBITDA:             null.FloatFrom(30),
			EBIT:               null.FloatFrom(25),
			TotalAssets:        null.FloatFrom(200),
			StockholdersEquity: null.FloatFrom(50),
			InvestedCapital:    null.FloatFrom(125),
			TotalDebt:          null.FloatFrom(75),
			TaxProvision:       null.FloatFrom(3),
			PretaxIncome:       null.FloatFrom(12),
			SGAndA:             null.FloatFrom(15),
			RAndD:              null.FloatFrom(5),
			FreeCashFlow:       null.FloatFrom(8),
			WorkingCapital:     null.FloatFrom(16),
		}
	}

	It("computes every ratio", func() {
		table := kpi.Compute(full())
		Expect(table.Len()).To(Equal(1))

		row := table.Rows[0]
		Expect(row.Symbol).To(Equal("ACME"))
		Expect(row.Year).To(Equal(2023))
		Expect(row.Description).To(Equal(null.StringFrom("Acme Corp")))
		Expect(row.GrossMargin.Float64).To(BeNumerically("~", 0.4, 1e-12))
		Expect(row.OperatingMargin.Float64).To(BeNumerically("~", 0.2, 1e-12))
		Expect(row.NetMargin.Float64).To(BeNumerically("~", 0.1, 1e-12))
		Expect(row.EBITDAMargin.Float64).To(BeNumerically("~", 0.3, 1e-12))
		Expect(row.ROA.Float64).To(BeNumerically("~", 0.05, 1e-12))
		Expect(row.ROE.Float64).To(BeNumerically("~", 0.2, 1e-12))
		Expect(row.ROIC.Float64).To(BeNumerically("~", 0.2, 1e-12))
		Expect(row.DebtToEquity.Float64).To(BeNumerically("~", 1.5, 1e-12))
		Expect(row.TaxRate.Float64).To(BeNumerically("~", 0.25, 1e-12))
		Expect(row.SGAndAToRevenue.Float64).To(BeNumerically("~", 0.15, 1e-12))
		Expect(row.RAndDToRevenue.Float64).To(BeNumerically("~", 0.05, 1e-12))
		Expect(row.FCFMargin.Float64).To(BeNumerically("~", 0.08, 1e-12))
		Expect(row.WorkingCapitalToRevenue.Float64).To(BeNumerically("~", 0.16, 1e-12))
		Expect(row.AssetTurnover.Float64).To(BeNumerically("~", 0.5, 1e-12))
		Expect(row.EquityRatio.Float64).To(BeNumerically("~", 0.25, 1e-12))
	})

	It("marks ratios over a zero denominator missing", func() {
		table := kpi.ComputeRows(map[string]any{"symbol": "ACME", "year": 2023, "total_revenue": 0, "gross_profit": 5})
		row := table.Row("ACME", 2023)
		Expect(row).NotTo(BeNil())
		Expect(row.GrossMargin.Valid).To(BeFalse())
		Expect(row.NetMargin.Valid).To(BeFalse())
	})

	It("marks ratios with missing inputs missing", func() {
		record := full()
		record.StockholdersEquity = null.Float{}
		record.TotalRevenue = null.FloatFrom(0)

		row := kpi.Compute(record).Rows[0]
		Expect(row.ROE.Valid).To(BeFalse())
		Expect(row.DebtToEquity.Valid).To(BeFalse())
		Expect(row.EquityRatio.Valid).To(BeFalse())
		Expect(row.GrossMargin.Valid).To(BeFalse())
		Expect(row.AssetTurnover).To(Equal(null.FloatFrom(0)))
		Expect(row.ROA.Valid).To(BeTrue())
	})

	It("keeps the first row for a repeated symbol and year", func() {
		first := full()
		second := full()
		second.GrossProfit = null.FloatFrom(90)

		table := kpi.Compute(first, nil, second)
		Expect(table.Len()).To(Equal(1))
		Expect(table.Rows[0].GrossMargin.Float64).To(BeNumerically("~", 0.4, 1e-12))
	})

	It("preserves input order", func() {
		a := full()
		a.Year = 2022
		b := full()
		b.Symbol = "INIT"

		table := kpi.Compute(b, a)
		Expect(table.Rows[0].Symbol).To(Equal("INIT"))
		Expect(table.Rows[1].Year).To(Equal(2022))
	})

	It("defaults an empty symbol to N/A", func() {
		table := kpi.Compute(&data.FinancialRecord{Year: 2023, TotalRevenue: null.FloatFrom(1)})
		Expect(table.Rows[0].Symbol).To(Equal("N/A"))
	})

	It("parses string numerics", func() {
		table := kpi.ComputeRows(map[string]any{
			"symbol":        "ACME",
			"year":          "2023",
			"total_revenue": "1,000",
			"net_income":    "(500)",
			"gross_profit":  "n/a",
		})

		row := table.Row("ACME", 2023)
		Expect(row).NotTo(BeNil())
		Expect(row.NetMargin.Float64).To(BeNumerically("~", -0.5, 1e-12))
		Expect(row.GrossMargin.Valid).To(BeFalse())
	})

	It("accepts every integer kind as a numeric input", func() {
		table := kpi.ComputeRows(map[string]any{
			"symbol":        "ACME",
			"year":          2023,
			"total_revenue": uint(10),
			"gross_profit":  int16(5),
			"net_income":    uint8(2),
		})

		row := table.Row("ACME", 2023)
		Expect(row).NotTo(BeNil())
		Expect(row.GrossMargin).To(Equal(null.FloatFrom(0.5)))
		Expect(row.NetMargin).To(Equal(null.FloatFrom(0.2)))
	})

	It("emits every column even when no input field is present", func() {
		table := kpi.ComputeRows(map[string]any{"symbol": "ACME", "year": 2023})
		Expect(table.Columns).To(Equal(kpi.ColumnNames()))
		Expect(table.Columns).To(HaveLen(15))

		for _, name := range table.Columns {
			values, ok := table.Column(name)
			Expect(ok).To(BeTrue())
			Expect(values).To(Equal([]null.Float{{}}))
		}

		_, ok := table.Column("Interest Coverage")
		Expect(ok).To(BeFalse())
	})

	It("encodes missing ratios as nil in row maps", func() {
		table := kpi.ComputeRows(map[string]any{"symbol": "ACME", "year": 2023, "total_revenue": 0})
		m := table.Maps()[0]
		Expect(m).To(HaveKey("Gross Margin"))
		Expect(m["Gross Margin"]).To(Equal(null.Float{}))
	})
})

var _ = Describe("SectorAverages", func() {
	It("averages a metric per sector ignoring missing values", func() {
		records := []*data.FinancialRecord{
			{Symbol: "A", Year: 2023, Sector: "Tech", EBITDA: null.FloatFrom(10)},
			{Symbol: "B", Year: 2023, Sector: "Tech", EBITDA: null.FloatFrom(20)},
			{Symbol: "C", Year: 2023, Sector: "Tech"},
			{Symbol: "D", Year: 2023, Sector: "Energy", EBITDA: null.FloatFrom(5)},
			{Symbol: "E", Year: 2023, Sector: "N/A", EBITDA: null.FloatFrom(100)},
			{Symbol: "F", Year: 2022, Sector: "Energy", EBITDA: null.FloatFrom(50)},
		}

		averages, err := kpi.SectorAverages(records, "ebitda", 2023)
		Expect(err).NotTo(HaveOccurred())
		Expect(averages).To(Equal([]kpi.SectorAverage{
			{Sector: "Energy", Mean: 5, Count: 1},
			{Sector: "Tech", Mean: 15, Count: 2},
		}))
	})

	It("rejects unknown metrics", func() {
		_, err := kpi.SectorAverages(nil, "market_cap", 0)
		Expect(err).To(MatchError(kpi.ErrUnknownMetric))
	})
})
