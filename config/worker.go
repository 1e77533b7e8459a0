// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"encoding/hex"
	"fmt"
)

type WorkerConfig struct {
	// Hex encoded 32 byte seed for the worker signing key, usually
	// provided through the environment. If empty a random key is generated
	// at startup.
	SigningSeed string `yaml:"signingSeed"`
	// Path heartbeat challenges are dispatched to
	HeartbeatChallengePath string `yaml:"heartbeatChallengePath"`
	// Path heartbeat responses are sent to
	HeartbeatResponsePath string `yaml:"heartbeatResponsePath"`
}

func (w *WorkerConfig) validate() []string {
	var errs []string
	if w.SigningSeed != "" {
		if seed, err := hex.DecodeString(w.SigningSeed); err != nil || len(seed) != 32 {
			errs = append(errs, "worker signingSeed must be 32 hex encoded bytes")
		}
	}
	if w.HeartbeatChallengePath == "" || w.HeartbeatResponsePath == "" {
		errs = append(errs, fmt.Sprintf("heartbeat paths must be set: %q %q", w.HeartbeatChallengePath, w.HeartbeatResponsePath))
	}
	return errs
}
