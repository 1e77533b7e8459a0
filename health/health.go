// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package health

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/vabaly/phala-blockchain/logger"
)

// Health wraps an error (nil means "healthy"), and provides HTTP handling
// logic to serve that error.
type Health struct {
	name string
	mu   sync.Mutex
	err  error
}

// New creates a new named health object, with initial health set based on
// the 'initial' error (nil==healthy).
func New(name string, initial error) *Health {
	return &Health{name: name, err: initial}
}

// Set sets the underlying error for this Health object; err=nil means "OK".
// Transitions between healthy and unhealthy are logged.
func (h *Health) Set(err error) {
	h.mu.Lock()
	was := h.err
	h.err = err
	h.mu.Unlock()
	switch {
	case was == nil && err != nil:
		logger.Warnw("health check failing", "check", h.name, "err", err)
	case was != nil && err == nil:
		logger.Infow("health check recovered", "check", h.name)
	}
}

// Err returns the current error, nil when healthy
func (h *Health) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// ServeHTTP implements http.Handler.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.Err()
	if err == nil {
		fmt.Fprintf(w, "ok")
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, "%s: %v", h.name, err)
}
