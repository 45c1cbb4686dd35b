/*
Copyright (c) The Bond Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultClientTimeout bounds a Client's HTTP round trip, the same way
// sptp/stats.FetchStats bounds its own status fetch.
const DefaultClientTimeout = 2 * time.Second

// Client is cmd/bondctl's means of reaching a running daemon's control
// endpoint.
type Client struct {
	BaseURL string
	http    http.Client
}

// NewClient returns a Client posting commands to baseURL + "/command".
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, http: http.Client{Timeout: DefaultClientTimeout}}
}

// Submit posts req to the daemon's control endpoint and returns the
// daemon-reported error, if any.
func (c *Client) Submit(req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.BaseURL+"/command", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out Response
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("control: decoding response: %w", err)
	}
	if out.Error != "" {
		return fmt.Errorf("control: %s", out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control: unexpected status %s", resp.Status)
	}
	return nil
}

// FetchSnapshot fetches the daemon's current telemetry snapshot from
// its JSON status endpoint, the same shape as
// ptp/sptp/stats.FetchStats's http.Get-then-json.Unmarshal round trip.
func FetchSnapshot(baseURL string, out interface{}) error {
	c := http.Client{Timeout: DefaultClientTimeout}
	resp, err := c.Get(baseURL + "/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
