// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package auth authenticates operators of the control endpoints. Operators
// present basic auth credentials whose password is a timestamped HMAC of
// their name under a secret shared with the service.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vabaly/phala-blockchain/util"
)

const (
	// DefaultMaxAge is how long a generated password stays valid
	DefaultMaxAge = 24 * time.Hour

	macLength = 16
)

var (
	ErrMalformed = errors.New("malformed credentials")
	ErrExpired   = errors.New("credentials expired")
	ErrMAC       = errors.New("credentials mac mismatch")
)

// Auth allows us to check a username and password, or generate a password for a user.
type Auth interface {
	// Check returns nil if this user/pass combination is legitimate.
	// Otherwise, it returns an error describing the reason it's invalid.
	Check(user, pass string) error
	// PassFor returns a valid password for a given user at the current time.
	PassFor(user string) string
}

// New returns an Auth that accepts passwords minted with secret no more
// than maxAge away from the current time.
func New(secret []byte, maxAge time.Duration) Auth {
	return &auth{secret: secret, clock: util.RealClock, maxAge: maxAge}
}

// FromHexSecret returns AlwaysAllow for an empty secret, otherwise New with
// the decoded secret and DefaultMaxAge.
func FromHexSecret(secret string) (Auth, error) {
	if secret == "" {
		return AlwaysAllow, nil
	}
	b, err := hex.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decoding auth secret: %w", err)
	}
	return New(b, DefaultMaxAge), nil
}

type alwaysAllow struct{}

func (a alwaysAllow) Check(user, pass string) error {
	return nil
}
func (a alwaysAllow) PassFor(user string) string {
	return "0:00"
}

// AlwaysAllow provides an Auth that will always allow operators to connect.
var AlwaysAllow = Auth(alwaysAllow{})

type auth struct {
	secret []byte
	clock  util.Clock
	maxAge time.Duration
}

func (a *auth) Check(user, pass string) error {
	if user == "" {
		return fmt.Errorf("%w: empty user", ErrMalformed)
	}
	ts, sig, err := parsePass(pass)
	if err != nil {
		return err
	}
	diff := a.clock.Now().Sub(ts)
	if diff > a.maxAge || diff < -a.maxAge {
		return ErrExpired
	}
	if subtle.ConstantTimeCompare(a.mac(user, ts), sig) != 1 {
		return ErrMAC
	}
	return nil
}

func parsePass(pass string) (time.Time, []byte, error) {
	tsPart, sigPart, ok := strings.Cut(pass, ":")
	if !ok {
		return time.Time{}, nil, fmt.Errorf("%w: no separator", ErrMalformed)
	}
	unixSecs, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	sig, err := hex.DecodeString(sigPart)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: mac: %v", ErrMalformed, err)
	}
	return time.Unix(unixSecs, 0), sig, nil
}

func (a *auth) mac(user string, ts time.Time) []byte {
	mac := hmac.New(sha256.New, a.secret)
	fmt.Fprintf(mac, "control:%s:%d", user, ts.Unix())
	return mac.Sum(nil)[:macLength]
}

func (a *auth) PassFor(user string) string {
	ts := a.clock.Now()
	return fmt.Sprintf("%d:%x", ts.Unix(), a.mac(user, ts))
}
