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
package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the cache in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	stats, err := myLibrary.store.Stats(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if _, err := builder.WriteString(fmt.Sprintf("# %s\n", myLibrary.Name)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Details\n\n"); err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Companies Cached: %d\n", stats.Symbols)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Financial Records: %d\n", stats.FinancialRecords)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * KPI Records: %d\n", stats.KPIRecords)); err != nil {
		return "", err
	}

	if stats.FinancialRecords > 0 {
		if _, err := builder.WriteString(fmt.Sprintf("  * Fiscal Years: %d - %d\n", stats.MinYear, stats.MaxYear)); err != nil {
			return "", err
		}
	}

	if _, err := builder.WriteString("\n"); err != nil {
		return "", err
	}

	lastUpdated := stats.LastUpdated
	if lastUpdated.IsZero() || lastUpdated.Year() <= 1 {
		if _, err := builder.WriteString("Last Updated: Never\n\n"); err != nil {
			return "", err
		}
	} else {
		age := timeago.English.Format(lastUpdated)
		if _, err := builder.WriteString(fmt.Sprintf("Last Updated: %s (%s)\n\n", age, lastUpdated.Local().Format(time.DateOnly))); err != nil {
			return "", err
		}
	}

	return builder.String(), nil
}
