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
	"time"

	"github.com/penny-vault/pvkpi/data"
	"github.com/rs/zerolog"
)

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every FetchYears call of next by timeout. A call that
// runs out of time returns an empty result and a *FetchError of KindTimeout
// wrapping ErrTimeout, even if next does not honor its context.
func WithTimeout(next Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return next
	}
	return &timeoutProvider{next: next, timeout: timeout}
}

func (tp *timeoutProvider) Name() string {
	return tp.next.Name()
}

type fetchResult struct {
	records []*data.FinancialRecord
	err     error
}

func (tp *timeoutProvider) FetchYears(ctx context.Context, symbol string, years []int, meta Meta) ([]*data.FinancialRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, tp.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		records, err := tp.next.FetchYears(ctx, symbol, years, meta)
		done <- fetchResult{records: records, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return []*data.FinancialRecord{}, tp.timeoutError(symbol)
		}
		return res.records, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return []*data.FinancialRecord{}, tp.timeoutError(symbol)
		}
		return []*data.FinancialRecord{}, &FetchError{Provider: tp.next.Name(), Symbol: symbol, Kind: KindCanceled, Err: ctx.Err()}
	}
}

func (tp *timeoutProvider) timeoutError(symbol string) error {
	return &FetchError{
		Provider: tp.next.Name(),
		Symbol:   symbol,
		Kind:     KindTimeout,
		Err:      fmt.Errorf("%w after %s", ErrTimeout, tp.timeout),
	}
}

type retryProvider struct {
	next     Provider
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// WithRetry calls next up to attempts times while it fails with a temporary
// error, doubling the wait between calls starting from backoff
func WithRetry(next Provider, attempts int, backoff time.Duration, logger zerolog.Logger) Provider {
	if attempts <= 1 {
		return next
	}
	return &retryProvider{next: next, attempts: attempts, backoff: backoff, logger: logger}
}

func (rp *retryProvider) Name() string {
	return rp.next.Name()
}

func (rp *retryProvider) FetchYears(ctx context.Context, symbol string, years []int, meta Meta) ([]*data.FinancialRecord, error) {
	wait := rp.backoff

	var (
		records []*data.FinancialRecord
		err     error
	)

	for attempt := 1; attempt <= rp.attempts; attempt++ {
		records, err = rp.next.FetchYears(ctx, symbol, years, meta)
		if err == nil || !retryable(err) || attempt == rp.attempts {
			return records, err
		}

		rp.logger.Warn().Err(err).Str("Symbol", symbol).Int("Attempt", attempt).Dur("Backoff", wait).Msg("fetch failed; retrying")

		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return records, err
		}
		wait *= 2
	}

	return records, err
}

func retryable(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
