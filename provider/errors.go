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
	"errors"
	"fmt"
)

var (
	ErrInvalidStatusCode = errors.New("invalid status code received")
	ErrTimeout           = errors.New("upstream fetch timed out")
	ErrUpstream          = errors.New("upstream provider error")
)

type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindTimeout
	KindCanceled
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// FetchError reports that a provider could not retrieve any data for a symbol
type FetchError struct {
	Provider string
	Symbol   string
	Kind     ErrorKind
	Err      error
}

func (fetchErr *FetchError) Error() string {
	return fmt.Sprintf("%s fetch of %s failed (%s): %v", fetchErr.Provider, fetchErr.Symbol, fetchErr.Kind, fetchErr.Err)
}

func (fetchErr *FetchError) Unwrap() error {
	return fetchErr.Err
}

// Temporary reports whether calling again may succeed
func (fetchErr *FetchError) Temporary() bool {
	return fetchErr.Kind != KindCanceled
}

// IsTimeout reports whether err is a fetch timeout
func IsTimeout(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind == KindTimeout
	}
	return errors.Is(err, ErrTimeout)
}
