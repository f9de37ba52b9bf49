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
package backfill

// State is a step of a Backfill call. A call moves from Idle to LookupDone
// and ends either in AllCached or, through FetchInFlight, Validated and
// Merged, in Persisted.
type State int

const (
	Idle State = iota
	LookupDone
	AllCached
	FetchInFlight
	Validated
	Merged
	Persisted
)

func (state State) String() string {
	switch state {
	case Idle:
		return "Idle"
	case LookupDone:
		return "LookupDone"
	case AllCached:
		return "AllCached"
	case FetchInFlight:
		return "FetchInFlight"
	case Validated:
		return "Validated"
	case Merged:
		return "Merged"
	case Persisted:
		return "Persisted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the call finished normally in state
func (state State) Terminal() bool {
	return state == AllCached || state == Persisted
}
