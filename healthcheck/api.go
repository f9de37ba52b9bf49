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
package healthcheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/pvkpi/pkginfo"
	"github.com/rs/zerolog/log"
)

var (
	ErrStatus = errors.New("status code is invalid")
)

// PingURL is the base of the healthchecks.io ping API
var PingURL = "https://hc-ping.com"

// Start signals that a run of check id has begun. runID ties the start to
// the matching Ping or Fail.
func Start(id, runID string) error {
	return send(id, "/start", runID, "")
}

// Ping signals a successful run of check id
func Ping(id, runID string) error {
	return send(id, "", runID, "")
}

// Fail signals a failed run of check id; message is included in the body of
// the failure notification
func Fail(id, runID, message string) error {
	return send(id, "/fail", runID, message)
}

func send(id, suffix, runID, body string) error {
	if id == "" {
		log.Debug().Str("Event", strings.TrimPrefix(suffix, "/")).Msg("no healthcheck configured; skipping ping")
		return nil
	}

	client := resty.New()
	req := client.R().
		SetHeader("Content-Type", "text/plain").
		SetHeader("User-Agent", pkginfo.UserAgent())
	if runID != "" {
		req = req.SetQueryParam("rid", runID)
	}

	if body != "" {
		req = req.SetBody(body)
	}

	resp, err := req.Post(fmt.Sprintf("%s/%s%s", strings.TrimSuffix(PingURL, "/"), id, suffix))
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}
