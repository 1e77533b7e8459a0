// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"errors"
	"net/http"

	"github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/auth"
	"github.com/vabaly/phala-blockchain/logger"
)

var authFailureCounter = []string{"request", "authFailure"}

// AuthCheck wraps an http.Handler and rejects requests whose BasicAuth
// operator credentials the authenticator does not accept.
func AuthCheck(authenticator auth.Auth, inner http.Handler) http.Handler {
	return &authHandler{authenticator, inner}
}

type authHandler struct {
	authenticator auth.Auth
	inner         http.Handler
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrMAC):
		return "mac"
	default:
		return "malformed"
	}
}

func (a *authHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, _ := r.BasicAuth()
	if err := a.authenticator.Check(user, pass); err != nil {
		reason := failureReason(err)
		metrics.IncrCounterWithLabels(authFailureCounter, 1, []metrics.Label{{Name: "reason", Value: reason}})
		logger.Infow("operator auth failed", "user", user, "endpoint", r.URL.Path, "reason", reason, "err", err)
		w.Header().Set("WWW-Authenticate", `Basic realm="control"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	a.inner.ServeHTTP(w, r)
}
