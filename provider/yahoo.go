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
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/guregu/null/v6"
	"github.com/penny-vault/pvkpi/data"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	yahooBaseURL   = "https://query2.finance.yahoo.com"
	yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	notAvailable   = "N/A"
)

// earliest period requested from the timeseries endpoint (1985-08-22)
const yahooPeriodStart = 493590046

// Yahoo fetches annual statements from the Yahoo Finance fundamentals
// timeseries API and sector/industry from the quoteSummary asset profile
type Yahoo struct {
	client  *resty.Client
	baseURL string
	pacer   *Pacer
	logger  zerolog.Logger
	now     func() time.Time
}

type YahooOption func(*Yahoo)

// WithBaseURL points the client at a different host
func WithBaseURL(baseURL string) YahooOption {
	return func(yahoo *Yahoo) {
		yahoo.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithPacer(pacer *Pacer) YahooOption {
	return func(yahoo *Yahoo) {
		yahoo.pacer = pacer
	}
}

func WithLogger(logger zerolog.Logger) YahooOption {
	return func(yahoo *Yahoo) {
		yahoo.logger = logger
	}
}

func WithClock(now func() time.Time) YahooOption {
	return func(yahoo *Yahoo) {
		yahoo.now = now
	}
}

// NewYahoo creates a Yahoo provider. Without a pacer option the default
// random delay of 4 to 8 seconds per year is used.
func NewYahoo(opts ...YahooOption) *Yahoo {
	yahoo := &Yahoo{
		client:  resty.New().SetHeader("User-Agent", yahooUserAgent).SetHeader("Accept", "application/json"),
		baseURL: yahooBaseURL,
		pacer:   NewPacer(0, 4*time.Second, 8*time.Second),
		logger:  log.Logger,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(yahoo)
	}

	yahoo.logger = yahoo.logger.With().Str("Provider", yahoo.Name()).Logger()

	return yahoo
}

func (yahoo *Yahoo) Name() string {
	return "yahoo"
}

func (yahoo *Yahoo) FetchYears(ctx context.Context, symbol string, years []int, meta Meta) ([]*data.FinancialRecord, error) {
	records := make([]*data.FinancialRecord, 0, len(years))
	subLog := yahoo.logger.With().Str("Symbol", symbol).Logger()

	statements, err := yahoo.statements(ctx, symbol)
	if err != nil {
		subLog.Error().Err(err).Msg("error retrieving financial data")
		return records, yahoo.fetchError(ctx, symbol, err)
	}

	if len(statements) == 0 {
		subLog.Info().Msg("no financial data found for symbol")
		return records, nil
	}

	sector, industry := yahoo.profile(ctx, symbol)

	for _, year := range years {
		if err := yahoo.pacer.Delay(ctx); err != nil {
			return []*data.FinancialRecord{}, yahoo.fetchError(ctx, symbol, err)
		}

		items, ok := statements[year]
		if !ok {
			subLog.Debug().Int("Year", year).Msg("year not found for symbol")
			continue
		}

		record := &data.FinancialRecord{
			Symbol:        symbol,
			Sector:        sector,
			Industry:      industry,
			Description:   meta.Description,
			StockExchange: meta.StockExchange,
			Year:          year,
		}

		for _, field := range data.FinancialFields {
			val, ok := items[field.LineItem]
			if !ok {
				continue
			}

			if field.Scaled {
				val /= 1e9
			}

			field.Set(record, null.FloatFrom(val))
		}

		records = append(records, record)

		if err := yahoo.pacer.Delay(ctx); err != nil {
			return []*data.FinancialRecord{}, yahoo.fetchError(ctx, symbol, err)
		}
	}

	return records, nil
}

// statements returns the reported line items of symbol keyed by fiscal year.
// Only years with at least one income statement item are included.
func (yahoo *Yahoo) statements(ctx context.Context, symbol string) (map[int]map[string]float64, error) {
	types := make([]string, len(data.FinancialFields))
	for idx, field := range data.FinancialFields {
		types[idx] = "annual" + field.LineItem
	}

	if err := yahoo.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/ws/fundamentals-timeseries/v1/finance/timeseries/%s", yahoo.baseURL, url.PathEscape(symbol))
	resp, err := yahoo.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("type", strings.Join(types, ",")).
		SetQueryParam("period1", fmt.Sprintf("%d", yahooPeriodStart)).
		SetQueryParam("period2", fmt.Sprintf("%d", yahoo.now().Unix())).
		Get(endpoint)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w (%d): %s", ErrInvalidStatusCode, resp.StatusCode(), truncate(string(resp.Body()), 256))
	}

	body := string(resp.Body())
	if apiErr := gjson.Get(body, "timeseries.error"); apiErr.Exists() && apiErr.Type != gjson.Null {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, apiErr.Get("description").String())
	}

	lineItems := make(map[string]data.Field, len(data.FinancialFields))
	for _, field := range data.FinancialFields {
		lineItems["annual"+field.LineItem] = field
	}

	statements := make(map[int]map[string]float64)
	incomeYears := make(map[int]bool)

	gjson.Get(body, "timeseries.result").ForEach(func(_, series gjson.Result) bool {
		seriesType := series.Get("meta.type.0").String()
		field, ok := lineItems[seriesType]
		if !ok {
			return true
		}

		series.Get(seriesType).ForEach(func(_, obs gjson.Result) bool {
			if obs.Type == gjson.Null {
				return true
			}

			raw := obs.Get("reportedValue.raw")
			if !raw.Exists() || raw.Type != gjson.Number {
				return true
			}

			asOf, err := time.Parse(time.DateOnly, obs.Get("asOfDate").String())
			if err != nil {
				yahoo.logger.Warn().Err(err).Str("Symbol", symbol).Str("AsOfDate", obs.Get("asOfDate").String()).Msg("could not parse asOfDate")
				return true
			}

			year := asOf.Year()
			if _, ok := statements[year]; !ok {
				statements[year] = make(map[string]float64)
			}
			statements[year][field.LineItem] = raw.Float()

			if field.Statement == data.IncomeStatement {
				incomeYears[year] = true
			}

			return true
		})

		return true
	})

	for year := range statements {
		if !incomeYears[year] {
			delete(statements, year)
		}
	}

	return statements, nil
}

// profile returns the sector and industry of symbol, "N/A" when unknown
func (yahoo *Yahoo) profile(ctx context.Context, symbol string) (string, string) {
	sector, industry := notAvailable, notAvailable

	if err := yahoo.pacer.Wait(ctx); err != nil {
		return sector, industry
	}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s", yahoo.baseURL, url.PathEscape(symbol))
	resp, err := yahoo.client.R().
		SetContext(ctx).
		SetQueryParam("modules", "assetProfile").
		Get(endpoint)
	if err != nil {
		yahoo.logger.Warn().Err(err).Str("Symbol", symbol).Msg("could not retrieve asset profile")
		return sector, industry
	}

	if resp.StatusCode() >= 300 {
		yahoo.logger.Warn().Int("StatusCode", resp.StatusCode()).Str("Symbol", symbol).Msg("asset profile returned an invalid HTTP response")
		return sector, industry
	}

	assetProfile := gjson.GetBytes(resp.Body(), "quoteSummary.result.0.assetProfile")
	if val := assetProfile.Get("sector").String(); val != "" {
		sector = val
	}
	if val := assetProfile.Get("industry").String(); val != "" {
		industry = val
	}

	return sector, industry
}

func (yahoo *Yahoo) fetchError(ctx context.Context, symbol string, err error) *FetchError {
	kind := KindUpstream
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		kind = KindCanceled
	}

	return &FetchError{Provider: yahoo.Name(), Symbol: symbol, Kind: kind, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
