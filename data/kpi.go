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
package data

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/normalize"
	"github.com/rs/zerolog"
)

// KPIRecord holds the derived ratios for one (symbol, year) pair. Ratios that
// could not be computed are missing.
type KPIRecord struct {
	Symbol      string      `csv:"Symbol"`
	Year        int         `csv:"Year"`
	Description null.String `csv:"Description"`

	GrossMargin             null.Float `csv:"Gross Margin"`
	OperatingMargin         null.Float `csv:"Operating Margin"`
	NetMargin               null.Float `csv:"Net Margin"`
	EBITDAMargin            null.Float `csv:"EBITDA Margin"`
	ROA                     null.Float `csv:"ROA"`
	ROE                     null.Float `csv:"ROE"`
	ROIC                    null.Float `csv:"ROIC"`
	DebtToEquity            null.Float `csv:"Debt/Equity"`
	TaxRate                 null.Float `csv:"Tax Rate"`
	SGAndAToRevenue         null.Float `csv:"SG&A/Revenue"`
	RAndDToRevenue          null.Float `csv:"R&D/Revenue"`
	FCFMargin               null.Float `csv:"FCF Margin"`
	WorkingCapitalToRevenue null.Float `csv:"Working Capital/Revenue"`
	AssetTurnover           null.Float `csv:"Asset Turnover"`
	EquityRatio             null.Float `csv:"Equity Ratio"`
}

// KPIColumn is one ratio of the KPI table: Name is its display and payload
// key, Numerator and Denominator name the FinancialRecord fields it divides.
type KPIColumn struct {
	Name        string
	Numerator   string
	Denominator string

	ptr func(*KPIRecord) *null.Float
}

func (col KPIColumn) Get(record *KPIRecord) null.Float {
	return *col.ptr(record)
}

func (col KPIColumn) Set(record *KPIRecord, value null.Float) {
	*col.ptr(record) = value
}

// KPIColumns is the canonical, ordered KPI column set
var KPIColumns = []KPIColumn{
	{Name: "Gross Margin", Numerator: "gross_profit", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.GrossMargin }},
	{Name: "Operating Margin", Numerator: "operating_income", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.OperatingMargin }},
	{Name: "Net Margin", Numerator: "net_income", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.NetMargin }},
	{Name: "EBITDA Margin", Numerator: "ebitda", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.EBITDAMargin }},
	{Name: "ROA", Numerator: "net_income", Denominator: "total_assets", ptr: func(r *KPIRecord) *null.Float { return &r.ROA }},
	{Name: "ROE", Numerator: "net_income", Denominator: "stockholders_equity", ptr: func(r *KPIRecord) *null.Float { return &r.ROE }},
	{Name: "ROIC", Numerator: "ebit", Denominator: "invested_capital", ptr: func(r *KPIRecord) *null.Float { return &r.ROIC }},
	{Name: "Debt/Equity", Numerator: "total_debt", Denominator: "stockholders_equity", ptr: func(r *KPIRecord) *null.Float { return &r.DebtToEquity }},
	{Name: "Tax Rate", Numerator: "tax_provision", Denominator: "pretax_income", ptr: func(r *KPIRecord) *null.Float { return &r.TaxRate }},
	{Name: "SG&A/Revenue", Numerator: "sg_and_a", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.SGAndAToRevenue }},
	{Name: "R&D/Revenue", Numerator: "r_and_d", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.RAndDToRevenue }},
	{Name: "FCF Margin", Numerator: "free_cash_flow", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.FCFMargin }},
	{Name: "Working Capital/Revenue", Numerator: "working_capital", Denominator: "total_revenue", ptr: func(r *KPIRecord) *null.Float { return &r.WorkingCapitalToRevenue }},
	{Name: "Asset Turnover", Numerator: "total_revenue", Denominator: "total_assets", ptr: func(r *KPIRecord) *null.Float { return &r.AssetTurnover }},
	{Name: "Equity Ratio", Numerator: "stockholders_equity", Denominator: "total_assets", ptr: func(r *KPIRecord) *null.Float { return &r.EquityRatio }},
}

// KPIColumnByName returns the column with display name name
func KPIColumnByName(name string) (KPIColumn, bool) {
	for _, col := range KPIColumns {
		if col.Name == name {
			return col, true
		}
	}
	return KPIColumn{}, false
}

// ToMap converts the KPI record into its payload mapping
func (record *KPIRecord) ToMap() map[string]any {
	m := make(map[string]any, len(KPIColumns)+3)
	m["symbol"] = record.Symbol
	m["year"] = record.Year
	if record.Description.Valid {
		m["description"] = record.Description.String
	} else {
		m["description"] = nil
	}

	for _, col := range KPIColumns {
		m[col.Name] = col.Get(record)
	}

	return m
}

// KPIRecordFromMap builds a KPI record from a decoded payload
func KPIRecordFromMap(m map[string]any) *KPIRecord {
	record := &KPIRecord{
		Symbol: stringValue(m["symbol"]),
		Year:   YearValue(m["year"]),
	}

	if desc, ok := m["description"].(string); ok {
		record.Description = null.StringFrom(desc)
	}

	for _, col := range KPIColumns {
		col.Set(record, normalize.ParseNumber(m[col.Name]))
	}

	return record
}

// DecodeKPIRecord parses a canonical JSON KPI payload
func DecodeKPIRecord(payload []byte) (*KPIRecord, error) {
	m, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	return KPIRecordFromMap(m), nil
}

func (record *KPIRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Symbol", record.Symbol)
	e.Int("Year", record.Year)
	e.Str("Description", record.Description.String)
}

func decodeObject(payload []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotAnObject, v)
	}

	return m, nil
}
