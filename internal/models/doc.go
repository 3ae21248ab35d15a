// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package models defines the data structures shared by the rating notification
service.

Key Components:

  - Rating: one user's current rating of one media item
  - RatingEvent: the broker record for a committed rating change, partitioned
    by the rater's user id
  - FollowRelationship and Follower: who follows whom, with the minimum
    rating that notifies the follower
  - Notification: the follower-facing record, unique per recipient, media
    item and rating
  - APIResponse: the HTTP response envelope

Event Kinds:

A committed rating with a value publishes a rating.rated event, which the
fanout consumer turns into notifications. Every change, including a cleared
rating, also publishes rating.aggregate_recompute, which only refreshes the
media item's statistics.

Thread Safety:

Values in this package are plain data and carry no synchronization.
*/
package models
