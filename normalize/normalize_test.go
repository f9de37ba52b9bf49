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
package normalize_test

import (
	"math"

	"github.com/guregu/null/v6"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"

	"github.com/penny-vault/pvkpi/normalize"
)

var _ = Describe("Canonicalize", func() {
	DescribeTable("scalar values",
		func(input any, expected types.GomegaMatcher) {
			Expect(normalize.Canonicalize(input)).To(expected)
		},
		Entry("NaN becomes nil", math.NaN(), BeNil()),
		Entry("+Inf becomes nil", math.Inf(1), BeNil()),
		Entry("-Inf becomes nil", math.Inf(-1), BeNil()),
		Entry("float32 NaN becomes nil", float32(math.NaN()), BeNil()),
		Entry("finite float passes through", 10.5, Equal(10.5)),
		Entry("int widens to int64", 7, Equal(int64(7))),
		Entry("true stays a bool", true, Equal(true)),
		Entry("false stays a bool", false, Equal(false)),
		Entry("nil stays nil", nil, BeNil()),
		Entry("missing null.Float is nil", null.Float{}, BeNil()),
		Entry("valid null.Float unwraps", null.FloatFrom(0), Equal(0.0)),
		Entry("strings pass through", "ACME", Equal("ACME")),
	)

	It("recurses into nested mappings and sequences", func() {
		in := map[string]any{
			"a": math.NaN(),
			"b": map[string]any{"c": math.Inf(1), "d": 1.0},
			"e": []any{math.NaN(), 2.0, true},
		}

		out := normalize.Canonicalize(in)
		Expect(out).To(Equal(map[string]any{
			"a": nil,
			"b": map[string]any{"c": nil, "d": 1.0},
			"e": []any{nil, 2.0, true},
		}))
	})

	It("leaves the input mapping untouched", func() {
		in := map[string]any{"a": math.NaN()}
		normalize.Map(in)
		Expect(math.IsNaN(in["a"].(float64))).To(BeTrue())
	})

	It("returns unknown types unchanged", func() {
		type custom struct{ X int }
		val := custom{X: 3}
		Expect(normalize.Canonicalize(val)).To(Equal(val))
	})
})

var _ = Describe("Marshal", func() {
	It("emits NaN and infinite values as null", func() {
		out, err := normalize.Marshal(map[string]any{"year": 2023, "total_revenue": math.NaN(), "ebit": math.Inf(-1)})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`{"ebit":null,"total_revenue":null,"year":2023}`))
	})

	It("is byte stable regardless of insertion order", func() {
		first := map[string]any{}
		first["b"] = 2.0
		first["a"] = 1.0

		second := map[string]any{}
		second["a"] = 1.0
		second["b"] = 2.0

		a, err := normalize.Marshal(first)
		Expect(err).NotTo(HaveOccurred())
		b, err := normalize.Marshal(second)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})

	It("does not escape HTML characters in keys", func() {
		out, err := normalize.Marshal(map[string]any{"SG&A/Revenue": 0.25, "R&D/Revenue": nil})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`{"R&D/Revenue":null,"SG&A/Revenue":0.25}`))
	})

	It("keeps booleans distinct from integers", func() {
		out, err := normalize.Marshal(map[string]any{"flag": true, "count": 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`{"count":1,"flag":true}`))
	})
})

var _ = Describe("ParseNumber", func() {
	DescribeTable("loose numeric parsing",
		func(input any, expected null.Float) {
			Expect(normalize.ParseNumber(input)).To(Equal(expected))
		},
		Entry("float", 1.5, null.FloatFrom(1.5)),
		Entry("int", 3, null.FloatFrom(3)),
		Entry("zero is present", 0.0, null.FloatFrom(0)),
		Entry("thousands separator", "1,234", null.FloatFrom(1234)),
		Entry("accounting negative", "(500)", null.FloatFrom(-500)),
		Entry("padded string", "  42.5 ", null.FloatFrom(42.5)),
		Entry("empty string", "", null.Float{}),
		Entry("N/A", "N/A", null.Float{}),
		Entry("nan string", "nan", null.Float{}),
		Entry("NaN float", math.NaN(), null.Float{}),
		Entry("infinite float", math.Inf(1), null.Float{}),
		Entry("bool is not a number", true, null.Float{}),
		Entry("nil", nil, null.Float{}),
		Entry("unsupported type", []int{1}, null.Float{}),
		Entry("int8", int8(-8), null.FloatFrom(-8)),
		Entry("int16", int16(16), null.FloatFrom(16)),
		Entry("int32", int32(32), null.FloatFrom(32)),
		Entry("int64", int64(64), null.FloatFrom(64)),
		Entry("uint", uint(10), null.FloatFrom(10)),
		Entry("uint8", uint8(8), null.FloatFrom(8)),
		Entry("uint16", uint16(16), null.FloatFrom(16)),
		Entry("uint32", uint32(32), null.FloatFrom(32)),
		Entry("uint64", uint64(64), null.FloatFrom(64)),
	)
})
