// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediatrack/notifier/internal/eventprocessor"
	"github.com/mediatrack/notifier/internal/models"
	"github.com/mediatrack/notifier/internal/ratings"
)

// RatingService stores rating mutations.
type RatingService interface {
	Rate(ctx context.Context, req ratings.RateRequest) (*models.Rating, error)
}

// FollowStore manages follow relationships.
type FollowStore interface {
	Follow(ctx context.Context, followerID, followingID int64, threshold int) (*models.FollowRelationship, error)
	UpdateThreshold(ctx context.Context, followerID, followingID int64, threshold int) error
	Unfollow(ctx context.Context, followerID, followingID int64) error
	ListFollowing(ctx context.Context, followerID int64) ([]models.FollowRelationship, error)
}

// NotificationService is the notification read path.
type NotificationService interface {
	FindRecent(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	FindUnread(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID int64, limit int) (int, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	ClampLimit(limit int) int
}

// DLQService inspects and replays dead letters.
type DLQService interface {
	List(ctx context.Context, limit int) ([]*eventprocessor.DLQEntry, error)
	Get(ctx context.Context, id string) (*eventprocessor.DLQEntry, error)
	Delete(ctx context.Context, id string) error
	Replay(ctx context.Context, id string) error
}

// LiveFeed upgrades a request into a per-user websocket subscription.
type LiveFeed interface {
	ServeUser(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, userID int64) error
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	CheckAll(ctx context.Context) eventprocessor.OverallHealth
}

// HandlerDeps are the services behind the handlers. Feed, DLQ and Health
// may be nil; their routes then answer 503.
type HandlerDeps struct {
	Ratings       RatingService
	Follows       FollowStore
	Notifications NotificationService
	Feed          LiveFeed
	DLQ           DLQService
	Health        HealthReporter

	// DefaultThreshold applies to follows that omit minimumRatingThreshold.
	DefaultThreshold int

	// AllowedOrigins restricts websocket upgrades; empty allows any.
	AllowedOrigins []string
}

// Handler holds the dependencies of every route.
type Handler struct {
	ratings          RatingService
	follows          FollowStore
	notifications    NotificationService
	feed             LiveFeed
	dlq              DLQService
	health           HealthReporter
	defaultThreshold int
	upgrader         *websocket.Upgrader
	startTime        time.Time
}

// NewHandler validates deps. Ratings, Follows and Notifications are
// required.
func NewHandler(deps HandlerDeps) (*Handler, error) {
	if deps.Ratings == nil || deps.Follows == nil || deps.Notifications == nil {
		return nil, errors.New("ratings, follows and notifications are required")
	}
	threshold := deps.DefaultThreshold
	if threshold < models.MinRating || threshold > models.MaxRating {
		return nil, errors.New("default threshold out of range")
	}
	if threshold == 0 {
		threshold = models.DefaultRatingThreshold
	}
	return &Handler{
		ratings:          deps.Ratings,
		follows:          deps.Follows,
		notifications:    deps.Notifications,
		feed:             deps.Feed,
		dlq:              deps.DLQ,
		health:           deps.Health,
		defaultThreshold: threshold,
		upgrader:         newUpgrader(deps.AllowedOrigins),
		startTime:        time.Now(),
	}, nil
}
