// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

// Package client talks to the control endpoints of a running service
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/web/handlers"
)

type ControlClient struct {
	Addr string
	// Basic auth credentials, omitted when User is empty
	User, Pass string
	// Client defaults to http.DefaultClient
	Client *http.Client
}

func (cc *ControlClient) client() *http.Client {
	if cc.Client != nil {
		return cc.Client
	}
	return http.DefaultClient
}

func (cc *ControlClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("http://%v%v", cc.Addr, path), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cc.User != "" {
		req.SetBasicAuth(cc.User, cc.Pass)
	}
	resp, err := cc.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed : %w", err)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body : %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed, status=%v, body=%s", resp.Status, respBody)
	}
	return respBody, nil
}

// SetLogLevel changes the service's log level
func (cc *ControlClient) SetLogLevel(ctx context.Context, level string) error {
	form := url.Values{"level": []string{level}}
	_, err := cc.do(ctx, http.MethodPost, "/control/loglevel", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	return err
}

// Queue fetches the send queue status
func (cc *ControlClient) Queue(ctx context.Context) (*handlers.QueueStatus, error) {
	body, err := cc.do(ctx, http.MethodGet, "/control/queue", nil, "")
	if err != nil {
		return nil, err
	}
	var status handlers.QueueStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("could not parse server response, body=%s : %w", body, err)
	}
	return &status, nil
}

// Feed streams submissions to fn until ctx is done, fn returns an error,
// or the server closes the stream.
func (cc *ControlClient) Feed(ctx context.Context, fn func(chain.Submission) error) error {
	header := http.Header{}
	if cc.User != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(cc.User + ":" + cc.Pass))
		header.Set("Authorization", "Basic "+creds)
	}
	c, _, err := websocket.DefaultDialer.DialContext(ctx, fmt.Sprintf("ws://%v/control/feed", cc.Addr), header)
	if err != nil {
		return fmt.Errorf("dialing feed : %w", err)
	}
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		var s chain.Submission
		if err := c.ReadJSON(&s); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
}
