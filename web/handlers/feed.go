// Copyright 2025 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-metrics"

	"github.com/vabaly/phala-blockchain/chain"
	"github.com/vabaly/phala-blockchain/config"
	"github.com/vabaly/phala-blockchain/logger"
)

// SubmissionSource is a feed of submissions to the chain
type SubmissionSource interface {
	Listen(size int) (<-chan chain.Submission, func())
}

// NewFeed returns a handler that upgrades GET requests to a websocket and
// streams every submission as a JSON text message.
func NewFeed(cfg *config.FeedConfig, source SubmissionSource) http.Handler {
	return &feedHandler{
		cfg:    cfg,
		source: source,
		upgrader: websocket.Upgrader{
			HandshakeTimeout:  cfg.WebsocketHandshakeTimeout,
			EnableCompression: false,
		},
	}
}

const (
	maxReadLimit = 1024
	// WSTooSlow closes subscribers that could not keep up with the feed
	WSTooSlow = 4008
)

var websocketClosureCounterName = []string{"websocket", "closeCode"}

type feedHandler struct {
	cfg      *config.FeedConfig
	source   SubmissionSource
	upgrader websocket.Upgrader
}

func (h *feedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("ws upgrade failed", "err", err)
		return
	}
	defer c.Close()
	c.SetReadLimit(maxReadLimit)

	submissions, stop := h.source.Listen(h.cfg.BufferSize)
	defer stop()

	closed := make(chan error, 1)
	go func() {
		// the client only sends control frames, this loop exists to process them
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	}()

	err = h.stream(c, submissions, closed)
	var wsErr *websocket.CloseError
	if errors.As(err, &wsErr) {
		logger.Debugw("feed client close", "err", wsErr)
		labels := [1]metrics.Label{{Name: "code", Value: fmt.Sprintf("%d", wsErr.Code)}}
		metrics.IncrCounterWithLabels(websocketClosureCounterName, 1, labels[:])
		return
	}

	// Send a close frame and forget, no need to wait for close response
	if err := h.writeMessage(c, websocket.CloseMessage, closeMessage(err)); err != nil {
		logger.Infow("failed to write close message", "err", err)
	}
}

var errTooSlow = errors.New("subscriber fell behind")

func closeMessage(err error) []byte {
	switch {
	case err == nil:
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	case errors.Is(err, errTooSlow):
		return websocket.FormatCloseMessage(WSTooSlow, err.Error())
	default:
		logger.Warnw("error streaming feed", "err", err)
		return websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "")
	}
}

func (h *feedHandler) stream(c *websocket.Conn, submissions <-chan chain.Submission, closed <-chan error) error {
	for {
		select {
		case err := <-closed:
			return err
		case s, ok := <-submissions:
			if !ok {
				return errTooSlow
			}
			if err := c.SetWriteDeadline(time.Now().Add(h.cfg.SocketTimeout)); err != nil {
				return err
			}
			if err := c.WriteJSON(s); err != nil {
				return err
			}
		}
	}
}

func (h *feedHandler) writeMessage(c *websocket.Conn, messageType int, data []byte) error {
	if err := c.SetWriteDeadline(time.Now().Add(h.cfg.SocketTimeout)); err != nil {
		return err
	}
	return c.WriteMessage(messageType, data)
}
