// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/vabaly/phala-blockchain/config"
)

func TestSetLevel(t *testing.T) {
	cfg := config.Default()
	mux := http.NewServeMux()
	mux.Handle("/control/loglevel", NewSetLogLevel(cfg))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.PostForm(fmt.Sprintf("%v/control/loglevel", ts.URL), url.Values{
		"level": []string{"warn"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST loglevel = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if got := cfg.Log.Level.Level(); got != zapcore.WarnLevel {
		t.Errorf("level = %v, want %v", got, zapcore.WarnLevel)
	}

	resp, err = http.Get(fmt.Sprintf("%v/control/loglevel", ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET loglevel = %v, want %v", resp.StatusCode, http.StatusNotFound)
	}
}

func TestBadArgs(t *testing.T) {
	cfg := config.Default()
	mux := http.NewServeMux()
	mux.Handle("/control/loglevel", NewSetLogLevel(cfg))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	for _, tt := range []url.Values{
		{},
		{"level": []string{"foo"}},
		{"levelz": []string{"info"}},
	} {
		name := fmt.Sprintf("%v", tt)
		t.Run(name, func(t *testing.T) {
			resp, err := http.PostForm(fmt.Sprintf("%v/control/loglevel", ts.URL), tt)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("POST loglevel(name) = %v, want %v", resp.StatusCode, http.StatusBadRequest)
			}

		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		key      string
		level    string
		valid    bool
		expected zapcore.Level
	}{
		{"level", "info", true, zapcore.InfoLevel},
		{"level", "InFo", true, zapcore.InfoLevel},
		{"level", "verbose", true, zapcore.DebugLevel},
		{"level", " warning ", true, zapcore.WarnLevel},
		{"level", "fatal", true, zapcore.ErrorLevel},
		{"levelz", "info", false, zapcore.InvalidLevel},
		{"LEVEL", "info", false, zapcore.InvalidLevel},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s=%s", tt.key, tt.level)
		t.Run(name, func(t *testing.T) {
			val := url.Values{}
			val.Set(tt.key, tt.level)
			level, err := parseLogLevel(val)
			if tt.valid && err != nil {
				t.Errorf("expected success, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected error")
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel(%s)=%v, want %v", name, level, tt.expected)
			}
		})
	}
}
