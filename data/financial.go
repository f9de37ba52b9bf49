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
	"errors"
	"fmt"

	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/normalize"
	"github.com/rs/zerolog"
)

var (
	ErrNotAnObject = errors.New("payload is not a JSON object")
)

// FinancialRecord is one company's reported financials for one fiscal year.
// Monetary values are expressed in billions of the reporting currency, per
// share figures are left unscaled. A numeric field that is not Valid is
// missing: the provider did not report it or it could not be parsed.
type FinancialRecord struct {
	Symbol        string `json:"symbol"`
	Sector        string `json:"sector"`
	Industry      string `json:"industry"`
	Description   string `json:"description"`
	StockExchange string `json:"stock_exchange"`
	Year          int    `json:"year"`

	// [Income Statement]
	TotalRevenue                         null.Float `json:"total_revenue"`
	OperatingRevenue                     null.Float `json:"operating_revenue"`
	CostOfRevenue                        null.Float `json:"cost_of_revenue"`
	GrossProfit                          null.Float `json:"gross_profit"`
	OperatingExpense                     null.Float `json:"operating_expense"`
	SGAndA                               null.Float `json:"sg_and_a"`
	RAndD                                null.Float `json:"r_and_d"`
	OperatingIncome                      null.Float `json:"operating_income"`
	NetNonOperatingInterestIncomeExpense null.Float `json:"net_non_operating_interest_income_expense"`
	InterestExpenseNonOperating          null.Float `json:"interest_expense_non_operating"`
	PretaxIncome                         null.Float `json:"pretax_income"`
	TaxProvision                         null.Float `json:"tax_provision"`
	NetIncomeCommonStockholders          null.Float `json:"net_income_common_stockholders"`
	NetIncome                            null.Float `json:"net_income"`
	NetIncomeContinuousOperations        null.Float `json:"net_income_continuous_operations"`
	BasicEPS                             null.Float `json:"basic_eps"`   // currency/share
	DilutedEPS                           null.Float `json:"diluted_eps"` // currency/share
	BasicAverageShares                   null.Float `json:"basic_average_shares"`
	DilutedAverageShares                 null.Float `json:"diluted_average_shares"`
	TotalExpenses                        null.Float `json:"total_expenses"`
	NormalizedIncome                     null.Float `json:"normalized_income"`
	InterestExpense                      null.Float `json:"interest_expense"`
	NetInterestIncome                    null.Float `json:"net_interest_income"`
	EBIT                                 null.Float `json:"ebit"`
	EBITDA                               null.Float `json:"ebitda"`
	ReconciledDepreciation               null.Float `json:"reconciled_depreciation"`
	NormalizedEBITDA                     null.Float `json:"normalized_ebitda"`

	// [Balance Sheet]
	TotalAssets        null.Float `json:"total_assets"`
	StockholdersEquity null.Float `json:"stockholders_equity"`
	WorkingCapital     null.Float `json:"working_capital"`
	InvestedCapital    null.Float `json:"invested_capital"`
	TotalDebt          null.Float `json:"total_debt"`

	// [Cash Flow Statement]
	FreeCashFlow  null.Float `json:"free_cash_flow"`
	ChangesInCash null.Float `json:"changes_in_cash"`
}

// Key identifies a financial record in the cache
type Key struct {
	Symbol string
	Year   int
}

func (key Key) String() string {
	return fmt.Sprintf("%s:%d", key.Symbol, key.Year)
}

// Key returns the (symbol, year) pair of the record
func (record *FinancialRecord) Key() Key {
	return Key{Symbol: record.Symbol, Year: record.Year}
}

// IsEmpty reports whether the record carries neither identity nor any value
func (record *FinancialRecord) IsEmpty() bool {
	if record == nil {
		return true
	}

	if record.Symbol != "" || record.Year != 0 {
		return false
	}

	for _, field := range FinancialFields {
		if field.Get(record).Valid {
			return false
		}
	}

	return true
}

// Clone returns a shallow copy of the record; all fields are values so the
// copy is independent of the original
func (record *FinancialRecord) Clone() *FinancialRecord {
	if record == nil {
		return nil
	}

	cp := *record
	return &cp
}

// ToMap converts the record into the payload mapping stored in the cache.
// Empty descriptive strings are stored as null.
func (record *FinancialRecord) ToMap() map[string]any {
	m := make(map[string]any, len(FinancialFields)+6)
	m["symbol"] = record.Symbol
	m["sector"] = emptyAsNil(record.Sector)
	m["industry"] = emptyAsNil(record.Industry)
	m["description"] = emptyAsNil(record.Description)
	m["stock_exchange"] = emptyAsNil(record.StockExchange)
	m["year"] = record.Year

	for _, field := range FinancialFields {
		m[field.Key] = field.Get(record)
	}

	return m
}

// FinancialRecordFromMap builds a record from a decoded payload. Numeric
// values are parsed loosely (see normalize.ParseNumber); unknown keys are
// ignored and absent keys leave the field missing.
func FinancialRecordFromMap(m map[string]any) *FinancialRecord {
	record := &FinancialRecord{
		Symbol:        stringValue(m["symbol"]),
		Sector:        stringValue(m["sector"]),
		Industry:      stringValue(m["industry"]),
		Description:   stringValue(m["description"]),
		StockExchange: stringValue(m["stock_exchange"]),
		Year:          YearValue(m["year"]),
	}

	for _, field := range FinancialFields {
		field.Set(record, normalize.ParseNumber(m[field.Key]))
	}

	return record
}

// DecodeFinancialRecord parses a canonical JSON payload
func DecodeFinancialRecord(payload []byte) (*FinancialRecord, error) {
	m, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	return FinancialRecordFromMap(m), nil
}

func (record *FinancialRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Symbol", record.Symbol)
	e.Int("Year", record.Year)
	e.Str("Sector", record.Sector)
}

// YearValue extracts an integer fiscal year from a decoded value, returning
// 0 when the value cannot represent a year
func YearValue(v any) int {
	switch typed := v.(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case int32:
		return int(typed)
	case bool:
		return 0
	}

	num := normalize.ParseNumber(v)
	if !num.Valid || num.Float64 != float64(int(num.Float64)) {
		return 0
	}

	return int(num.Float64)
}

func emptyAsNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringValue(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
