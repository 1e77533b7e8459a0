// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/auth"
	"github.com/vabaly/phala-blockchain/rate"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, user, pass string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/control/queue", nil)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthCheck(t *testing.T) {
	a := auth.New([]byte("secret"), time.Hour)
	h := AuthCheck(a, okHandler)

	if w := serve(h, "operator", a.PassFor("operator")); w.Code != http.StatusOK {
		t.Errorf("valid credentials: status %v", w.Code)
	}
	for _, tt := range []struct{ user, pass string }{
		{"", ""},
		{"operator", "bad"},
		{"other", a.PassFor("operator")},
	} {
		w := serve(h, tt.user, tt.pass)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%+v: status %v, want %v", tt, w.Code, http.StatusUnauthorized)
		}
		if w.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%+v: missing WWW-Authenticate", tt)
		}
	}
}

func TestFailureReason(t *testing.T) {
	a := auth.New([]byte("secret"), time.Hour)
	tests := []struct {
		pass, want string
	}{
		{"nonsense", "malformed"},
		{"1:00", "expired"},
		{a.PassFor("someone-else"), "mac"},
	}
	for _, tt := range tests {
		if got := failureReason(a.Check("operator", tt.pass)); got != tt.want {
			t.Errorf("failureReason(Check(%q))=%q, want %q", tt.pass, got, tt.want)
		}
	}
}

type limitFunc func(ctx context.Context, key string) error

func (f limitFunc) Limit(ctx context.Context, key string) error { return f(ctx, key) }

func TestRateLimit(t *testing.T) {
	var keys []string
	limiter := limitFunc(func(_ context.Context, key string) error {
		keys = append(keys, key)
		if key == "operator:greedy" {
			return rate.ErrLimitExceeded{RetryAfter: 90 * time.Second}
		}
		return nil
	})
	h := RateLimit(limiter, okHandler)

	if w := serve(h, "operator", "x"); w.Code != http.StatusOK {
		t.Errorf("status %v, want %v", w.Code, http.StatusOK)
	}
	w := serve(h, "greedy", "x")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status %v, want %v", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Retry-After=%q, want 90", got)
	}
	serve(h, "", "")
	if diff := cmp.Diff([]string{"operator:operator", "operator:greedy", "anonymous"}, keys); diff != "" {
		t.Errorf("limited keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimitErrorAllows(t *testing.T) {
	limiter := limitFunc(func(context.Context, string) error { return context.DeadlineExceeded })
	if w := serve(RateLimit(limiter, okHandler), "operator", "x"); w.Code != http.StatusOK {
		t.Errorf("status %v, want %v", w.Code, http.StatusOK)
	}
}

type mockMetricsWriter struct {
	counters  map[string]int
	durations int
}

func (m *mockMetricsWriter) IncrCounterWithLabels(key []string, val float32, labels []metrics.Label) {
	k := strings.Join(key, ".")
	for _, l := range labels {
		k += "," + l.Name + "=" + l.Value
	}
	m.counters[k] += int(val)
}

func (m *mockMetricsWriter) MeasureSinceWithLabels([]string, time.Time, []metrics.Label) {
	m.durations++
}

func TestInstrument(t *testing.T) {
	m := &mockMetricsWriter{counters: make(map[string]int)}
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	silent := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	for _, h := range []http.Handler{okHandler, okHandler, notFound, silent} {
		(&handler{endpoint: "queue", inner: h, writer: m}).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/control/queue", nil))
	}

	want := map[string]int{
		"http.response,endpoint=queue,method=GET,status=200": 2,
		"http.response,endpoint=queue,method=GET,status=404": 1,
	}
	if diff := cmp.Diff(want, m.counters); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}
	if m.durations != 3 {
		t.Errorf("recorded %d durations, want 3", m.durations)
	}
}
