// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mediatrack/notifier/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the notifier API. ListenAndServe blocks in a
// goroutine; cancellation triggers Shutdown bounded by shutdownTimeout.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	addr            string
}

// NewHTTPServerService wraps server. addr is only used in log lines.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		addr:            addr,
	}
}

// Serve implements suture.Service. http.ErrServerClosed is not a failure.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logging.Info().Str("addr", h.addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled, so shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		logging.Info().Dur("timeout", h.shutdownTimeout).Msg("HTTP server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer.
func (h *HTTPServerService) String() string {
	return "http-server"
}
