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

import "github.com/rs/zerolog"

// Company is one row of an exchange's company list
type Company struct {
	Ticker        string `csv:"ticker" json:"ticker"`
	Description   string `csv:"description" json:"description"`
	Sector        string `csv:"sector" json:"sector"`
	Industry      string `csv:"industry" json:"industry"`
	StockExchange string `csv:"-" json:"stock_exchange"`
}

func (company *Company) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", company.Ticker)
	e.Str("Description", company.Description)
	e.Str("StockExchange", company.StockExchange)
}
