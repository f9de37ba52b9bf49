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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvkpi/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ErrInvalidYear = errors.New("invalid fiscal year")

type dbConfig struct {
	URL string `toml:"url"`
}

type libraryConfig struct {
	DB        dbConfig `toml:"db"`
	Exchanges string   `toml:"exchanges"`
	Years     []int    `toml:"years"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather cache configuration and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := libraryConfig{
			DB:        dbConfig{URL: viper.GetString("db.url")},
			Exchanges: viper.GetString("exchanges"),
		}

		yearsStr := joinYears(viper.GetIntSlice("years"))

		form := huh.NewForm(
			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Where should the cache be stored? (sqlite://path/to/file.db or postgres://[user[:password]@][netloc][:port][/dbname])").
					Value(&cfg.DB.URL).
					Validate(func(dsn string) error {
						_, _, err := db.ParseURL(dsn)
						return err
					}),
			),

			// Gather details about the companies to cache
			huh.NewGroup(
				huh.NewInput().
					Title("Path to the exchange index (label,company-file per line):").
					Value(&cfg.Exchanges),

				huh.NewInput().
					Title("Fiscal years to cache (comma separated):").
					Value(&yearsStr).
					Validate(func(s string) error {
						_, err := parseYears(s)
						return err
					}),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering cache settings")
		}

		cfg.Years, _ = parseYears(yearsStr)

		log.Info().Msg("creating cache tables")

		if err := db.Migrate(cfg.DB.URL); err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("cache tables created")

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		configFN := filepath.Join(home, ".pvkpi.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving cache settings to config file")
		configData, err := toml.Marshal(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0600)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("Your financial cache has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func parseYears(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	years := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		year, err := strconv.Atoi(part)
		if err != nil || year < 1900 || year > 2999 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidYear, part)
		}

		years = append(years, year)
	}

	if len(years) == 0 {
		return nil, fmt.Errorf("%w: none given", ErrInvalidYear)
	}

	return years, nil
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for idx, year := range years {
		parts[idx] = strconv.Itoa(year)
	}
	return strings.Join(parts, ",")
}
