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
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/penny-vault/pvkpi/data"
	"github.com/penny-vault/pvkpi/kpi"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sectorYear int

var sectorsCmd = &cobra.Command{
	Use:   "sectors METRIC",
	Short: "Print the per-sector mean of a financial metric from cached records",
	Long: `The sectors sub-command averages one financial metric (for example
total_revenue or net_income) over every cached company of the exchange
directory, grouped by sector. Only cached records are used; nothing is
fetched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if _, ok := data.FieldByKey(args[0]); !ok {
			log.Fatal().Str("Metric", args[0]).Msg("unknown metric")
		}

		year := sectorYear
		if year == 0 {
			years := requestedYears()
			year = years[len(years)-1]
		}

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		dir := loadDirectory(false)
		companies := dir.All()
		symbols := make([]string, len(companies))
		for idx, company := range companies {
			symbols[idx] = company.Ticker
		}

		cached, err := myLibrary.LoadMany(ctx, symbols, []int{year})
		if err != nil {
			log.Fatal().Err(err).Msg("could not load cached records")
		}

		records := make([]*data.FinancialRecord, 0, len(cached))
		for _, record := range cached {
			records = append(records, record)
		}

		averages, err := kpi.SectorAverages(records, args[0], year)
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute sector averages")
		}

		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Sector", "Companies", "Mean").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == 0 {
					return headerStyle
				}
				if col > 0 {
					return cellStyle.Align(lipgloss.Right)
				}
				return cellStyle
			})

		for _, avg := range averages {
			tbl.Row(avg.Sector, strconv.Itoa(avg.Count), strconv.FormatFloat(avg.Mean, 'f', 3, 64))
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("%s (%d)", args[0], year)))
		fmt.Println(tbl.Render())
	},
}

func init() {
	rootCmd.AddCommand(sectorsCmd)
	sectorsCmd.Flags().IntVar(&sectorYear, "year", 0, "fiscal year to average (default is the last configured year)")
}
