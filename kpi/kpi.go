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

// Package kpi derives financial ratios from yearly financial records.
package kpi

import (
	"math"
	"sort"

	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/data"
	"gonum.org/v1/gonum/stat"
)

const unknownSymbol = "N/A"

// Table holds one KPI row per (symbol, year) in input order
type Table struct {
	Columns []string
	Rows    []*data.KPIRecord

	index map[data.Key]int
}

// Compute derives the KPI table for records. Nil records are ignored and
// only the first record seen for a (symbol, year) contributes a row. A ratio
// whose numerator or denominator is missing, or whose denominator is zero,
// is missing.
func Compute(records ...*data.FinancialRecord) *Table {
	table := &Table{
		Columns: ColumnNames(),
		Rows:    make([]*data.KPIRecord, 0, len(records)),
		index:   make(map[data.Key]int, len(records)),
	}

	for _, record := range records {
		if record == nil {
			continue
		}

		symbol := record.Symbol
		if symbol == "" {
			symbol = unknownSymbol
		}

		key := data.Key{Symbol: symbol, Year: record.Year}
		if _, ok := table.index[key]; ok {
			continue
		}

		row := &data.KPIRecord{
			Symbol: symbol,
			Year:   record.Year,
		}

		if record.Description != "" {
			row.Description = null.StringFrom(record.Description)
		}

		for _, col := range data.KPIColumns {
			num, _ := data.FieldByKey(col.Numerator)
			den, _ := data.FieldByKey(col.Denominator)
			col.Set(row, ratio(num.Get(record), den.Get(record)))
		}

		table.index[key] = len(table.Rows)
		table.Rows = append(table.Rows, row)
	}

	return table
}

// ComputeRows is Compute over loosely typed rows, such as decoded JSON.
// String numerics like "1,234" or "(500)" are accepted; values that cannot
// be read as numbers are missing.
func ComputeRows(rows ...map[string]any) *Table {
	records := make([]*data.FinancialRecord, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		records = append(records, data.FinancialRecordFromMap(row))
	}

	return Compute(records...)
}

// ColumnNames returns the canonical KPI column names in display order
func ColumnNames() []string {
	names := make([]string, len(data.KPIColumns))
	for idx, col := range data.KPIColumns {
		names[idx] = col.Name
	}
	return names
}

// Len returns the number of rows in the table
func (table *Table) Len() int {
	return len(table.Rows)
}

// Row returns the row for (symbol, year) or nil
func (table *Table) Row(symbol string, year int) *data.KPIRecord {
	if idx, ok := table.index[data.Key{Symbol: symbol, Year: year}]; ok {
		return table.Rows[idx]
	}
	return nil
}

// Column returns the values of the named KPI column, one per row. The
// second result is false when name is not a KPI column.
func (table *Table) Column(name string) ([]null.Float, bool) {
	col, ok := data.KPIColumnByName(name)
	if !ok {
		return nil, false
	}

	values := make([]null.Float, len(table.Rows))
	for idx, row := range table.Rows {
		values[idx] = col.Get(row)
	}

	return values, true
}

// Maps returns every row as a payload mapping
func (table *Table) Maps() []map[string]any {
	out := make([]map[string]any, len(table.Rows))
	for idx, row := range table.Rows {
		out[idx] = row.ToMap()
	}
	return out
}

func ratio(numerator, denominator null.Float) null.Float {
	if !numerator.Valid || !denominator.Valid || denominator.Float64 == 0 {
		return null.Float{}
	}

	val := numerator.Float64 / denominator.Float64
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return null.Float{}
	}

	return null.FloatFrom(val)
}

// SectorAverage is the mean of a metric across the companies of a sector
type SectorAverage struct {
	Sector string
	Mean   float64
	Count  int
}

// SectorAverages computes the mean of the financial line item metric per
// sector, sorted by sector name. Records with a missing value, an unknown
// sector, or a year other than year (when year is non-zero) are ignored.
func SectorAverages(records []*data.FinancialRecord, metric string, year int) ([]SectorAverage, error) {
	field, ok := data.FieldByKey(metric)
	if !ok {
		return nil, ErrUnknownMetric
	}

	values := make(map[string][]float64)
	for _, record := range records {
		if record == nil || (year != 0 && record.Year != year) {
			continue
		}

		if record.Sector == "" || record.Sector == unknownSymbol {
			continue
		}

		val := field.Get(record)
		if !val.Valid {
			continue
		}

		values[record.Sector] = append(values[record.Sector], val.Float64)
	}

	averages := make([]SectorAverage, 0, len(values))
	for sector, vals := range values {
		averages = append(averages, SectorAverage{
			Sector: sector,
			Mean:   stat.Mean(vals, nil),
			Count:  len(vals),
		})
	}

	sort.Slice(averages, func(i, j int) bool {
		return averages[i].Sector < averages[j].Sector
	})

	return averages, nil
}
