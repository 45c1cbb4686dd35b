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

package telemetry

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// JSONHandler serves the latest AggregateSnapshot as JSON on every
// request, the same always-current (not periodically scraped) approach
// as the Prometheus collector.
type JSONHandler struct {
	src Source
}

// NewJSONHandler returns an http.Handler for src's telemetry.
func NewJSONHandler(src Source) *JSONHandler {
	return &JSONHandler{src: src}
}

// ServeHTTP implements http.Handler.
func (h *JSONHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(Snapshot(h.src))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.WithError(err).Error("telemetry: failed to write JSON response")
	}
}
