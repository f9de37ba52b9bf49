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
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/gosimple/slug"
	"github.com/penny-vault/pvkpi/backblaze"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	exportDir    string
	exportUpload string
)

var exportCmd = &cobra.Command{
	Use:   "export [SYMBOL...]",
	Short: "Write cached KPI records to a CSV file",
	Long: `The export sub-command writes every cached KPI record of the given symbols
(or of all symbols when none are given) to a CSV file. Use --upload to copy the
file to a Backblaze B2 bucket afterwards.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		var dest backblaze.Destination
		if exportUpload != "" {
			var err error
			if dest, err = backblaze.ParseDestination(exportUpload); err != nil {
				log.Fatal().Err(err).Msg("invalid upload destination")
			}
		}

		symbols := make([]string, len(args))
		for idx, arg := range args {
			symbols[idx] = strings.ToUpper(strings.TrimSpace(arg))
		}

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		records, err := myLibrary.LoadAllKPIs(ctx, symbols...)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load kpi records")
		}

		if len(records) == 0 {
			log.Warn().Strs("Symbols", symbols).Msg("no kpi records to export")
			return
		}

		name := "all"
		if len(symbols) > 0 {
			name = strings.Join(symbols, " ")
		}

		fn := filepath.Join(exportDir, slug.Make("pvkpi kpis "+name)+".csv")
		fh, err := os.Create(fn)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", fn).Msg("could not create export file")
		}

		if err := gocsv.MarshalFile(&records, fh); err != nil {
			fh.Close()
			log.Fatal().Err(err).Str("FileName", fn).Msg("could not write export file")
		}

		if err := fh.Close(); err != nil {
			log.Fatal().Err(err).Str("FileName", fn).Msg("could not write export file")
		}

		log.Info().Str("FileName", fn).Int("Records", len(records)).Msg("exported kpi records")

		if exportUpload != "" {
			if err := backblaze.Upload(fn, dest); err != nil {
				log.Fatal().Err(err).Msg("upload failed")
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", ".", "directory the CSV file is written to")
	exportCmd.Flags().StringVar(&exportUpload, "upload", "", "upload the export to b2://bucket/dir")
}
