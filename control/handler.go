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
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bondwire/bond/session"
)

// DefaultSubmitTimeout bounds how long Handler waits for the session's
// control loop to apply a submitted command before reporting failure.
const DefaultSubmitTimeout = 2 * time.Second

// Target is implemented by session.Sender and session.Receiver.
type Target interface {
	Submit(ctx context.Context, cmd session.Command) error
}

// Handler is the POST /command endpoint mounted by cmd/bond-sender and
// cmd/bond-receiver alongside their telemetry endpoints.
type Handler struct {
	target Target
}

// NewHandler returns an http.Handler that submits decoded requests to
// target.
func NewHandler(target Target) *Handler {
	return &Handler{target: target}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	cmd, err := toCommand(req)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultSubmitTimeout)
	defer cancel()

	result := make(chan error, 1)
	cmd.Result = result
	if err := h.target.Submit(ctx, cmd); err != nil {
		writeResponse(w, http.StatusServiceUnavailable, Response{Error: err.Error()})
		return
	}

	select {
	case err := <-result:
		if err != nil {
			writeResponse(w, http.StatusBadRequest, Response{Error: err.Error()})
			return
		}
		writeResponse(w, http.StatusOK, Response{})
	case <-ctx.Done():
		writeResponse(w, http.StatusGatewayTimeout, Response{Error: ctx.Err().Error()})
	}
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Error("control: failed to write response")
	}
}
