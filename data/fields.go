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

import "github.com/guregu/null/v6"

type Statement int

const (
	IncomeStatement Statement = iota
	BalanceSheet
	CashFlowStatement
)

func (s Statement) String() string {
	switch s {
	case IncomeStatement:
		return "income statement"
	case BalanceSheet:
		return "balance sheet"
	case CashFlowStatement:
		return "cash flow statement"
	default:
		return "unknown"
	}
}

// Field describes one numeric line item of a FinancialRecord. LineItem is
// the provider's name for the value; when Scaled is set the provider figure
// is divided by 1e9 before it is stored.
type Field struct {
	Key       string
	LineItem  string
	Statement Statement
	Scaled    bool

	ptr func(*FinancialRecord) *null.Float
}

// Get returns the value of the field on record
func (field Field) Get(record *FinancialRecord) null.Float {
	return *field.ptr(record)
}

// Set assigns value to the field on record
func (field Field) Set(record *FinancialRecord, value null.Float) {
	*field.ptr(record) = value
}

// FinancialFields is the ordered table of every numeric line item carried by
// a FinancialRecord
var FinancialFields = []Field{
	{Key: "total_revenue", LineItem: "TotalRevenue", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.TotalRevenue }},
	{Key: "operating_revenue", LineItem: "OperatingRevenue", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.OperatingRevenue }},
	{Key: "cost_of_revenue", LineItem: "CostOfRevenue", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.CostOfRevenue }},
	{Key: "gross_profit", LineItem: "GrossProfit", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.GrossProfit }},
	{Key: "operating_expense", LineItem: "OperatingExpense", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.OperatingExpense }},
	{Key: "sg_and_a", LineItem: "SellingGeneralAndAdministration", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.SGAndA }},
	{Key: "r_and_d", LineItem: "ResearchAndDevelopment", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.RAndD }},
	{Key: "operating_income", LineItem: "OperatingIncome", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.OperatingIncome }},
	{Key: "net_non_operating_interest_income_expense", LineItem: "NetNonOperatingInterestIncomeExpense", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NetNonOperatingInterestIncomeExpense }},
	{Key: "interest_expense_non_operating", LineItem: "InterestExpenseNonOperating", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.InterestExpenseNonOperating }},
	{Key: "pretax_income", LineItem: "PretaxIncome", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.PretaxIncome }},
	{Key: "tax_provision", LineItem: "TaxProvision", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.TaxProvision }},
	{Key: "net_income_common_stockholders", LineItem: "NetIncomeCommonStockholders", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NetIncomeCommonStockholders }},
	{Key: "net_income", LineItem: "NetIncome", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NetIncome }},
	{Key: "net_income_continuous_operations", LineItem: "NetIncomeContinuousOperations", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NetIncomeContinuousOperations }},
	{Key: "basic_eps", LineItem: "BasicEPS", Statement: IncomeStatement, Scaled: false, ptr: func(r *FinancialRecord) *null.Float { return &r.BasicEPS }},
	{Key: "diluted_eps", LineItem: "DilutedEPS", Statement: IncomeStatement, Scaled: false, ptr: func(r *FinancialRecord) *null.Float { return &r.DilutedEPS }},
	{Key: "basic_average_shares", LineItem: "BasicAverageShares", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.BasicAverageShares }},
	{Key: "diluted_average_shares", LineItem: "DilutedAverageShares", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.DilutedAverageShares }},
	{Key: "total_expenses", LineItem: "TotalExpenses", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.TotalExpenses }},
	{Key: "normalized_income", LineItem: "NormalizedIncome", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NormalizedIncome }},
	{Key: "interest_expense", LineItem: "InterestExpense", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.InterestExpense }},
	{Key: "net_interest_income", LineItem: "NetInterestIncome", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NetInterestIncome }},
	{Key: "ebit", LineItem: "EBIT", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.EBIT }},
	{Key: "ebitda", LineItem: "EBITDA", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.EBITDA }},
	{Key: "reconciled_depreciation", LineItem: "ReconciledDepreciation", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.ReconciledDepreciation }},
	{Key: "normalized_ebitda", LineItem: "NormalizedEBITDA", Statement: IncomeStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.NormalizedEBITDA }},
	{Key: "total_assets", LineItem: "TotalAssets", Statement: BalanceSheet, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.TotalAssets }},
	{Key: "stockholders_equity", LineItem: "StockholdersEquity", Statement: BalanceSheet, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.StockholdersEquity }},
	{Key: "free_cash_flow", LineItem: "FreeCashFlow", Statement: CashFlowStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.FreeCashFlow }},
	{Key: "changes_in_cash", LineItem: "ChangesInCash", Statement: CashFlowStatement, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.ChangesInCash }},
	{Key: "working_capital", LineItem: "WorkingCapital", Statement: BalanceSheet, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.WorkingCapital }},
	{Key: "invested_capital", LineItem: "InvestedCapital", Statement: BalanceSheet, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.InvestedCapital }},
	{Key: "total_debt", LineItem: "TotalDebt", Statement: BalanceSheet, Scaled: true, ptr: func(r *FinancialRecord) *null.Float { return &r.TotalDebt }},
}

var fieldsByKey = func() map[string]Field {
	m := make(map[string]Field, len(FinancialFields))
	for _, field := range FinancialFields {
		m[field.Key] = field
	}
	return m
}()

// FieldByKey looks up a line item by its payload key
func FieldByKey(key string) (Field, bool) {
	field, ok := fieldsByKey[key]
	return field, ok
}
