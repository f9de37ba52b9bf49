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
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginTop(1)
)

var kpiCmd = &cobra.Command{
	Use:   "kpi SYMBOL...",
	Short: "Print the KPI table of each symbol, computing and caching any that are missing",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		orchestrator := newOrchestrator(myLibrary, newPacer())
		years := requestedYears()

		symbols := make([]string, len(args))
		for idx, arg := range args {
			symbols[idx] = strings.ToUpper(strings.TrimSpace(arg))
		}

		records, err := orchestrator.KPIs(ctx, symbols, years)
		if err != nil {
			log.Fatal().Err(err).Msg("could not compute kpis")
		}

		bySymbol := make(map[string][]*data.KPIRecord)
		for _, record := range records {
			bySymbol[record.Symbol] = append(bySymbol[record.Symbol], record)
		}

		for _, symbol := range symbols {
			rows := bySymbol[symbol]
			if len(rows) == 0 {
				log.Warn().Str("Symbol", symbol).Msg("no kpis available")
				continue
			}

			fmt.Println(titleStyle.Render(symbol))
			fmt.Println(kpiTable(rows))
		}
	},
}

func init() {
	rootCmd.AddCommand(kpiCmd)
}

// kpiTable renders one row per KPI column and one column per year
func kpiTable(rows []*data.KPIRecord) string {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })

	headers := []string{"KPI"}
	for _, row := range rows {
		headers = append(headers, strconv.Itoa(row.Year))
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			if col > 0 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	for _, col := range data.KPIColumns {
		cells := []string{col.Name}
		for _, row := range rows {
			cells = append(cells, formatRatio(col.Get(row)))
		}
		tbl.Row(cells...)
	}

	return tbl.Render()
}

func formatRatio(value null.Float) string {
	if !value.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(value.Float64, 'f', 3, 64)
}
