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
package cmd

import (
	"context"

	"github.com/penny-vault/pvkpi/backfill"
	"github.com/penny-vault/pvkpi/db"
	"github.com/penny-vault/pvkpi/exchange"
	"github.com/penny-vault/pvkpi/library"
	"github.com/penny-vault/pvkpi/provider"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// openLibrary connects to the configured cache database; callers must Close
// the returned library
func openLibrary(ctx context.Context) *library.Library {
	cache, err := db.Open(ctx, viper.GetString("db.url"), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open cache database")
	}

	return library.New(cache, log.Logger)
}

// newPacer builds the fetch pacer from the fetch.* settings
func newPacer() *provider.Pacer {
	return provider.NewPacer(
		viper.GetFloat64("fetch.rate_limit"),
		viper.GetDuration("fetch.min_delay"),
		viper.GetDuration("fetch.max_delay"),
	)
}

// newProvider returns the Yahoo provider bounded by fetch.timeout and
// retried fetch.retries times
func newProvider(pacer *provider.Pacer) provider.Provider {
	var fetcher provider.Provider = provider.NewYahoo(
		provider.WithPacer(pacer),
		provider.WithLogger(log.Logger),
	)

	if timeout := viper.GetDuration("fetch.timeout"); timeout > 0 {
		fetcher = provider.WithTimeout(fetcher, timeout)
	}

	return provider.WithRetry(fetcher, viper.GetInt("fetch.retries")+1, viper.GetDuration("fetch.retry_backoff"), log.Logger)
}

func newOrchestrator(myLibrary *library.Library, pacer *provider.Pacer) *backfill.Orchestrator {
	return backfill.New(myLibrary, newProvider(pacer), log.Logger)
}

// requestedYears returns the fiscal years selected by --years or the config
func requestedYears() []int {
	years := viper.GetIntSlice("years")
	if len(years) == 0 {
		log.Fatal().Msg("no fiscal years configured")
	}
	return years
}

// loadDirectory reads the configured exchange directory. When optional is
// set a missing directory is logged and nil returned.
func loadDirectory(optional bool) *exchange.Directory {
	fn := viper.GetString("exchanges")
	dir, err := exchange.LoadDirectory(fn)
	if err != nil {
		if optional {
			log.Debug().Err(err).Str("FileName", fn).Msg("exchange directory not loaded")
			return nil
		}
		log.Fatal().Err(err).Str("FileName", fn).Msg("could not load exchange directory")
	}

	return dir
}

// companyOptions fills description and exchange for symbol from dir
func companyOptions(dir *exchange.Directory, symbol string) backfill.Options {
	if dir == nil {
		return backfill.Options{}
	}

	company, ok := dir.Lookup(symbol)
	if !ok {
		return backfill.Options{}
	}

	return backfill.Options{
		Description:   company.Description,
		StockExchange: company.StockExchange,
	}
}
