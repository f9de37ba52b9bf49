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
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pvkpi",
	Short: "pvkpi caches company financials and computes key performance indicators",
	Long: `pvkpi is a command line utility for building and maintaining a cache of
annual company financial statements and the key performance indicators derived
from them.

Requests for a symbol and a set of fiscal years are served from the cache
first; only years that are missing are fetched from the upstream provider
(Yahoo Finance), validated, and written back. KPIs such as gross margin,
ROE, and debt/equity are computed from the cached statements and stored
alongside them.

The cache lives in SQLite by default and may be moved to PostgreSQL by setting
db.url to a postgres:// connection string.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(viper.GetString("log.level"))
		if err != nil {
			log.Warn().Err(err).Str("Level", viper.GetString("log.level")).Msg("unknown log level; using info")
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pvkpi.toml)")

	rootCmd.PersistentFlags().String("db-url", "", "cache database connection string (postgres:// or sqlite://)")
	bindFlag(rootCmd, "db.url", "db-url")

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	bindFlag(rootCmd, "log.level", "log-level")

	rootCmd.PersistentFlags().IntSlice("years", nil, "fiscal years to request (default is the configured years)")
	bindFlag(rootCmd, "years", "years")

	setDefaults()
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Flag", flag).Msg("BindPFlag failed")
	}
}

// setDefaults registers the default value of every config key
func setDefaults() {
	viper.SetDefault("db.url", "sqlite://pvkpi.db")
	viper.SetDefault("exchanges", "exchanges.txt")
	viper.SetDefault("years", []int{2021, 2022, 2023, 2024})
	viper.SetDefault("log.level", "info")

	viper.SetDefault("fetch.min_delay", "4s")
	viper.SetDefault("fetch.max_delay", "8s")
	viper.SetDefault("fetch.rate_limit", 30.0)
	viper.SetDefault("fetch.timeout", "2m")
	viper.SetDefault("fetch.retries", 0)
	viper.SetDefault("fetch.retry_backoff", "10s")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pvkpi" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".pvkpi")
	}

	// PVKPI_DB_URL overrides db.url
	viper.SetEnvPrefix("pvkpi")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}
