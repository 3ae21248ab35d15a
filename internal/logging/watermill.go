// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillLogger implements watermill.LoggerAdapter on top of zerolog so
// router, retry and poison-queue output shares the process log format.
type WatermillLogger struct {
	logger zerolog.Logger
}

var _ watermill.LoggerAdapter = (*WatermillLogger)(nil)

// NewWatermillLogger wraps the global logger, tagged component=watermill.
func NewWatermillLogger() *WatermillLogger {
	return &WatermillLogger{logger: WithComponent("watermill")}
}

// NewWatermillLoggerWithLogger wraps logger as is.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func NewWatermillLoggerWithLogger(logger zerolog.Logger) *WatermillLogger {
	return &WatermillLogger{logger: logger}
}

// Error implements watermill.LoggerAdapter.
func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	withFields(l.logger.Error().Err(err), fields).Msg(msg)
}

// Info implements watermill.LoggerAdapter.
func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	withFields(l.logger.Info(), fields).Msg(msg)
}

// Debug implements watermill.LoggerAdapter.
func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	withFields(l.logger.Debug(), fields).Msg(msg)
}

// Trace implements watermill.LoggerAdapter.
func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	withFields(l.logger.Trace(), fields).Msg(msg)
}

// With implements watermill.LoggerAdapter.
func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{logger: l.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}

func withFields(event *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	if len(fields) == 0 {
		return event
	}
	return event.Fields(map[string]interface{}(fields))
}
