// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func get(h http.Handler) (int, string) {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	return w.Code, w.Body.String()
}

func TestTransitions(t *testing.T) {
	h := New("ready", errors.New("chain disconnected"))
	steps := []struct {
		set      error
		wantCode int
		wantBody string
	}{
		{errors.New("chain disconnected"), http.StatusServiceUnavailable, "ready: chain disconnected"},
		{nil, http.StatusOK, "ok"},
		{nil, http.StatusOK, "ok"},
		{errors.New("shutting down"), http.StatusServiceUnavailable, "ready: shutting down"},
	}
	for i, step := range steps {
		h.Set(step.set)
		code, body := get(h)
		if code != step.wantCode || body != step.wantBody {
			t.Errorf("step %d: got (%d, %q), want (%d, %q)", i, code, body, step.wantCode, step.wantBody)
		}
	}
}

func TestInitialState(t *testing.T) {
	if code, _ := get(New("live", nil)); code != http.StatusOK {
		t.Errorf("healthy initial state served %d", code)
	}
	if code, _ := get(New("live", errors.New("starting"))); code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy initial state served %d", code)
	}
}

func TestOverHTTP(t *testing.T) {
	ts := httptest.NewServer(New("live", nil))
	defer ts.Close()
	res, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status %v", res.Status)
	}
}

func TestErr(t *testing.T) {
	h := New("ready", nil)
	if h.Err() != nil {
		t.Errorf("Err()=%v, want nil", h.Err())
	}
	want := errors.New("chain disconnected")
	h.Set(want)
	if got := h.Err(); got != want {
		t.Errorf("Err()=%v, want %v", got, want)
	}
}
