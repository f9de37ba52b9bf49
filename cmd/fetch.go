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
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	forceRefresh bool
	description  string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch SYMBOL...",
	Short: "Serve financial records for symbols, fetching only years not yet cached",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		pacer := newPacer()
		orchestrator := newOrchestrator(myLibrary, pacer)
		dir := loadDirectory(true)
		years := requestedYears()

		startTime := time.Now()
		for idx, arg := range args {
			symbol := strings.ToUpper(strings.TrimSpace(arg))
			opts := companyOptions(dir, symbol)
			opts.ForceRefresh = forceRefresh
			if description != "" {
				opts.Description = description
			}

			subLog := log.With().Str("Symbol", symbol).Logger()

			outcome, err := orchestrator.Backfill(ctx, symbol, years, opts)
			if err != nil {
				subLog.Fatal().Err(err).Msg("could not save fetched records")
			}

			event := subLog.Info()
			if outcome.FetchErr != nil {
				event = subLog.Warn().Err(outcome.FetchErr)
			}

			event.Int("Cached", outcome.Cached).
				Int("Fetched", outcome.Fetched).
				Int("Discarded", outcome.Discarded).
				Int("Inserted", outcome.Saved.Inserted).
				Int("Updated", outcome.Saved.Updated).
				Ints("Missing", outcome.Missing(years)).
				Stringer("State", outcome.State).
				Msg("served financial records")

			if idx < len(args)-1 && outcome.Fetched > 0 {
				if err := pacer.Delay(ctx); err != nil {
					subLog.Fatal().Err(err).Msg("interrupted")
				}
			}
		}

		log.Info().Str("RunTime", durafmt.Parse(time.Since(startTime)).LimitFirstN(2).String()).Int("Symbols", len(args)).Msg("fetch complete")
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().BoolVarP(&forceRefresh, "force", "f", false, "re-fetch years that are already cached")
	fetchCmd.Flags().StringVar(&description, "description", "", "company description stamped on returned records")
}
