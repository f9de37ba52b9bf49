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
package provider

import (
	"context"

	"github.com/penny-vault/pvkpi/data"
)

// Meta is caller supplied descriptive data stamped onto fetched records
type Meta struct {
	Description   string
	StockExchange string
}

// Provider retrieves annual financial statements from an upstream source.
//
// FetchYears queries the provider for the full available history of symbol
// and returns one record for each requested year the provider has data for,
// in the order requested. Years the provider has no data for are left out of
// the result. When the provider fails for the whole symbol the result is
// empty and the error is a *FetchError; an empty result always means "could
// not fetch", never "confirmed no data". Providers do not retry: callers
// retry by calling again, or wrap the provider with WithRetry.
type Provider interface {
	Name() string
	FetchYears(ctx context.Context, symbol string, years []int, meta Meta) ([]*data.FinancialRecord, error)
}
