// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// package handlers provides http handlers for the control endpoints
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/origin"
)

// AckLookup returns the chain-acknowledged next sequence of each origin
type AckLookup interface {
	Thresholds(ctx context.Context, origins []origin.Origin) (map[origin.Origin]uint64, error)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnw("error writing control response", "err", err)
	}
}
