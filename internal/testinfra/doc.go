// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

// Package testinfra starts Docker containers for integration tests with
// testcontainers-go. Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// # Redis Container
//
//	func TestCounterAgainstRedis(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    rc, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, rc)
//	    ...
//	}
package testinfra
