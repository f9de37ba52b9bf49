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
	"fmt"
	"io"
	"strings"

	"github.com/penny-vault/pvkpi/pkginfo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pvkpi build and, optionally, its linked modules",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		withDeps, _ := cmd.Flags().GetBool("deps")

		if err := writeVersion(cmd.OutOrStdout(), short, withDeps); err != nil {
			log.Fatal().Err(err).Msg("could not print version info")
		}
	},
}

// writeVersion prints the build description to w. Module versions follow
// after a blank line when withDeps is set.
func writeVersion(w io.Writer, short, withDeps bool) error {
	line := pkginfo.BuildVersionString()
	if short {
		line = pkginfo.Version
	}

	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	if !withDeps {
		return nil
	}

	_, err := fmt.Fprintf(w, "\n%s\n", strings.Join(pkginfo.GetDependencyList(), "\n"))
	return err
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("deps", "d", false, "also list the module versions linked into the binary")
	versionCmd.Flags().BoolP("short", "s", false, "print the bare version number")
}
