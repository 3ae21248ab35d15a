// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// mockService fails its first failures runs, then blocks until canceled.
type mockService struct {
	name       string
	failures   int32
	startCount atomic.Int32
	stopCount  atomic.Int32
}

func newMockService(name string, failures int32) *mockService {
	return &mockService{name: name, failures: failures}
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.startCount.Add(1)
	defer m.stopCount.Add(1)
	if n <= m.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string {
	return m.name
}
