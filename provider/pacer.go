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
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out upstream requests. Wait enforces a requests-per-minute
// limit; Delay sleeps for a random duration in [MinDelay, MaxDelay] and is
// applied around each year's extraction.
type Pacer struct {
	MinDelay time.Duration
	MaxDelay time.Duration

	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing requestsPerMinute requests (unlimited
// when <= 0) with a random delay between minDelay and maxDelay
func NewPacer(requestsPerMinute float64, minDelay, maxDelay time.Duration) *Pacer {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(requestsPerMinute / 60)
	}

	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	return &Pacer{
		MinDelay: minDelay,
		MaxDelay: maxDelay,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// NoPacing returns a pacer that never waits
func NoPacing() *Pacer {
	return NewPacer(0, 0, 0)
}

// Wait blocks until the rate limiter permits another request
func (pacer *Pacer) Wait(ctx context.Context) error {
	if pacer == nil || pacer.limiter == nil {
		return nil
	}
	return pacer.limiter.Wait(ctx)
}

// Delay sleeps for a random duration or until ctx is done
func (pacer *Pacer) Delay(ctx context.Context) error {
	if pacer == nil {
		return nil
	}

	dur := pacer.MinDelay
	if spread := pacer.MaxDelay - pacer.MinDelay; spread > 0 {
		dur += time.Duration(rand.Int64N(int64(spread)))
	}

	return sleep(ctx, dur)
}

func sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
