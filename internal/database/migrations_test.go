// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"context"
	"testing"
)

func TestMigrations_AppliedOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	version, err := db.GetCurrentSchemaVersion(ctx)
	if err != nil {
		t.Fatalf("GetCurrentSchemaVersion() error = %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}

	if err := db.runMigrations(ctx); err != nil {
		t.Fatalf("second runMigrations() error = %v", err)
	}
	history, err := db.GetMigrationHistory(ctx)
	if err != nil {
		t.Fatalf("GetMigrationHistory() error = %v", err)
	}
	if len(history) != len(migrations) {
		t.Fatalf("history has %d entries, want %d", len(history), len(migrations))
	}
	for i, m := range history {
		if m.Version != migrations[i].Version || m.Name != migrations[i].Name {
			t.Errorf("history[%d] = v%d %s, want v%d %s", i, m.Version, m.Name, migrations[i].Version, migrations[i].Name)
		}
		if m.AppliedAt.IsZero() {
			t.Errorf("history[%d].AppliedAt is zero", i)
		}
	}
}

func TestMigrations_VersionsIncrease(t *testing.T) {
	t.Parallel()
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("migration %s version %d does not follow %d", migrations[i].Name, migrations[i].Version, migrations[i-1].Version)
		}
	}
}
