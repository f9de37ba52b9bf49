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
package healthcheck_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvkpi/healthcheck"
)

type ping struct {
	path  string
	runID string
	body  string
}

var _ = Describe("Ping API", func() {
	var (
		server   *httptest.Server
		mu       sync.Mutex
		received []ping
		status   int
		defaultURL string
	)

	BeforeEach(func() {
		received = nil
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			received = append(received, ping{path: r.URL.Path, runID: r.URL.Query().Get("rid"), body: string(body)})
			mu.Unlock()
			w.WriteHeader(status)
		}))

		defaultURL = healthcheck.PingURL
		healthcheck.PingURL = server.URL
	})

	AfterEach(func() {
		healthcheck.PingURL = defaultURL
		server.Close()
	})

	It("posts start, success, and failure events with the run id", func() {
		Expect(healthcheck.Start("check-1", "run-1")).To(Succeed())
		Expect(healthcheck.Ping("check-1", "run-1")).To(Succeed())
		Expect(healthcheck.Fail("check-1", "run-1", "2 companies failed")).To(Succeed())

		Expect(received).To(Equal([]ping{
			{path: "/check-1/start", runID: "run-1"},
			{path: "/check-1", runID: "run-1"},
			{path: "/check-1/fail", runID: "run-1", body: "2 companies failed"},
		}))
	})

	It("does nothing when no check is configured", func() {
		Expect(healthcheck.Ping("", "run-1")).To(Succeed())
		Expect(received).To(BeEmpty())
	})

	It("reports an unexpected status code", func() {
		status = http.StatusNotFound
		err := healthcheck.Ping("check-1", "")
		Expect(err).To(MatchError(healthcheck.ErrStatus))
	})
})
