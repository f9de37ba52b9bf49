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
	"github.com/penny-vault/pvkpi/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade the cache schema to the latest version",
	Run: func(cmd *cobra.Command, args []string) {
		if err := db.Migrate(viper.GetString("db.url")); err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("cache schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
