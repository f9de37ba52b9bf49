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

// Package normalize converts loosely typed numeric values into the JSON-safe
// canonical form used for persisted payloads and parses them back.
package normalize

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
)

// Canonicalize returns a JSON-safe representation of v. NaN and infinite
// floats become nil (the missing marker); mappings and sequences are
// canonicalized recursively. Values of unrecognized types are returned
// unchanged.
func Canonicalize(v any) any {
	switch typed := v.(type) {
	case nil:
		return nil
	case bool:
		return typed
	case float64:
		return finiteOrNil(typed)
	case float32:
		return finiteOrNil(float64(typed))
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case int64:
		return typed
	case uint:
		return uint64(typed)
	case uint8:
		return uint64(typed)
	case uint16:
		return uint64(typed)
	case uint32:
		return uint64(typed)
	case uint64:
		return typed
	case null.Float:
		if !typed.Valid {
			return nil
		}
		return finiteOrNil(typed.Float64)
	case null.String:
		if !typed.Valid {
			return nil
		}
		return typed.String
	case map[string]any:
		return Map(typed)
	case []any:
		out := make([]any, len(typed))
		for idx, elem := range typed {
			out[idx] = Canonicalize(elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(typed))
		for idx, elem := range typed {
			out[idx] = Map(elem)
		}
		return out
	case []float64:
		out := make([]any, len(typed))
		for idx, elem := range typed {
			out[idx] = finiteOrNil(elem)
		}
		return out
	default:
		return v
	}
}

// Map canonicalizes every value of m into a new mapping
func Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Canonicalize(v)
	}

	return out
}

// Marshal canonicalizes m and encodes it as JSON. Keys are emitted in sorted
// order so identical content always produces identical bytes; HTML
// characters such as & are written as is.
func Marshal(m map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Map(m)); err != nil {
		return "", err
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ParseNumber interprets v as a floating point number. Strings may contain
// thousands separators and accounting style negatives ("(500)"). Anything
// that cannot be read as a finite number, booleans included, is missing.
func ParseNumber(v any) null.Float {
	switch typed := v.(type) {
	case nil, bool:
		return null.Float{}
	case null.Float:
		if !typed.Valid {
			return typed
		}
		return finite(typed.Float64)
	case float64:
		return finite(typed)
	case float32:
		return finite(float64(typed))
	case int:
		return null.FloatFrom(float64(typed))
	case int8:
		return null.FloatFrom(float64(typed))
	case int16:
		return null.FloatFrom(float64(typed))
	case int32:
		return null.FloatFrom(float64(typed))
	case int64:
		return null.FloatFrom(float64(typed))
	case uint:
		return null.FloatFrom(float64(typed))
	case uint8:
		return null.FloatFrom(float64(typed))
	case uint16:
		return null.FloatFrom(float64(typed))
	case uint32:
		return null.FloatFrom(float64(typed))
	case uint64:
		return null.FloatFrom(float64(typed))
	case json.Number:
		return parseString(typed.String())
	case string:
		return parseString(typed)
	default:
		return null.Float{}
	}
}

func parseString(s string) null.Float {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "(", "-")
	s = strings.ReplaceAll(s, ")", "")
	if s == "" {
		return null.Float{}
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}
	}

	return finite(val)
}

func finite(val float64) null.Float {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return null.Float{}
	}
	return null.FloatFrom(val)
}

func finiteOrNil(val float64) any {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return nil
	}
	return val
}
