// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/logger"
	"github.com/vabaly/phala-blockchain/rate"
)

var (
	rateLimitCounter    = []string{"request", "rateLimit"}
	rateLimitErrCounter = []string{"request", "rateLimitErr"}
)

// RateLimit wraps a http.Handler and enforces a per-operator rate limit on
// requests going to that handler. Requests without credentials share one
// bucket.
func RateLimit(limiter rate.Limiter, next http.Handler) http.Handler {
	return &rateLimitHandler{limiter: limiter, inner: next}
}

type rateLimitHandler struct {
	limiter rate.Limiter
	inner   http.Handler
}

func limitKey(r *http.Request) string {
	if user, _, ok := r.BasicAuth(); ok && user != "" {
		return "operator:" + user
	}
	return "anonymous"
}

func (rh *rateLimitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := rh.limiter.Limit(r.Context(), limitKey(r))
	var exceeded rate.ErrLimitExceeded
	isExceeded := errors.As(err, &exceeded)
	metrics.IncrCounterWithLabels(rateLimitCounter, 1, []metrics.Label{
		{Name: "exceeded", Value: strconv.FormatBool(isExceeded)},
	})

	switch {
	case isExceeded:
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(exceeded.RetryAfter.Seconds())), 10))
		http.Error(w, "control rate limit exceeded", http.StatusTooManyRequests)
		return
	case errors.Is(err, context.Canceled):
		logger.Debugw("request cancelled while checking rate limit", "err", err)
		return
	case err != nil:
		// redis trouble should not lock operators out of the control surface
		metrics.IncrCounter(rateLimitErrCounter, 1)
		logger.Errorw("could not update rate limit", "err", err)
	}
	rh.inner.ServeHTTP(w, r)
}
