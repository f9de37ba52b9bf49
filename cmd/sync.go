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
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/penny-vault/pvkpi/backfill"
	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/healthcheck"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill the configured years for every company in the exchange directory",
	Long: `The sync sub-command walks every exchange listed in the exchange index and
backfills the configured fiscal years for each of its companies. Years already
in the cache are not fetched again. When healthchecks.sync_id is set the run is
reported to healthchecks.io.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		runID := uuid.New().String()
		checkID := viper.GetString("healthchecks.sync_id")
		subLog := log.With().Str("RunID", runID).Logger()

		if err := healthcheck.Start(checkID, runID); err != nil {
			subLog.Warn().Err(err).Msg("could not signal healthcheck start")
		}

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		pacer := newPacer()
		orchestrator := newOrchestrator(myLibrary, pacer)
		dir := loadDirectory(false)
		years := requestedYears()

		records, report, err := orchestrator.SyncDirectory(ctx, dir, years, backfill.SyncOptions{
			ForceRefresh: forceRefresh,
			Pacer:        pacer,
			Progress: func(company *data.Company, outcome *backfill.Outcome) {
				subLog.Info().
					Str("Symbol", company.Ticker).
					Str("StockExchange", company.StockExchange).
					Int("Cached", outcome.Cached).
					Int("Fetched", outcome.Fetched).
					Stringer("State", outcome.State).
					Msg("company synced")
			},
		})

		runTime := durafmt.Parse(report.EndTime.Sub(report.StartTime)).LimitFirstN(2).String()

		if err != nil {
			msg := fmt.Sprintf("sync stopped after %d companies: %s", report.Companies, err)
			if hcErr := healthcheck.Fail(checkID, runID, msg); hcErr != nil {
				subLog.Warn().Err(hcErr).Msg("could not signal healthcheck failure")
			}
			subLog.Fatal().Err(err).Str("RunTime", runTime).Msg("sync failed")
		}

		if len(report.Failed) > 0 {
			msg := fmt.Sprintf("%d of %d companies could not be fetched: %s", len(report.Failed), report.Companies, strings.Join(report.Failed, ", "))
			if hcErr := healthcheck.Fail(checkID, runID, msg); hcErr != nil {
				subLog.Warn().Err(hcErr).Msg("could not signal healthcheck failure")
			}
		} else if hcErr := healthcheck.Ping(checkID, runID); hcErr != nil {
			subLog.Warn().Err(hcErr).Msg("could not signal healthcheck success")
		}

		subLog.Info().
			Str("RunTime", runTime).
			Int("Companies", report.Companies).
			Int("Records", len(records)).
			Int("Cached", report.Cached).
			Int("Fetched", report.Fetched).
			Int("Discarded", report.Discarded).
			Strs("Failed", report.Failed).
			Msg("sync complete")
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&forceRefresh, "force", "f", false, "re-fetch years that are already cached")

	syncCmd.Flags().String("exchanges", "", "exchange index file (default is the configured exchanges)")
	if err := viper.BindPFlag("exchanges", syncCmd.Flags().Lookup("exchanges")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for exchanges failed")
	}
}
