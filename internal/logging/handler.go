// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors selected records to a
// diagnostic log file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// TeeHandler is a slog.Handler that wraps another handler and also forwards
// records at or above a threshold to a secondary handler.
type TeeHandler struct {
	inner     slog.Handler
	secondary slog.Handler
	level     slog.Level // Minimum level forwarded to secondary
}

// NewTeeHandler creates a TeeHandler. A nil secondary makes it a pass-through.
func NewTeeHandler(inner, secondary slog.Handler, level slog.Level) *TeeHandler {
	return &TeeHandler{inner: inner, secondary: secondary, level: level}
}

// Enabled implements slog.Handler.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.inner.Enabled(ctx, level) {
		return true
	}
	return h.secondary != nil && level >= h.level && h.secondary.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.inner.Enabled(ctx, r.Level) {
		if err := h.inner.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	if h.secondary != nil && r.Level >= h.level && h.secondary.Enabled(ctx, r.Level) {
		if err := h.secondary.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("diagnostic log: %w", err))
		}
	}

	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{
		inner:     h.inner.WithAttrs(attrs),
		secondary: withAttrs(h.secondary, attrs),
		level:     h.level,
	}
}

// WithGroup implements slog.Handler.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	t := &TeeHandler{inner: h.inner.WithGroup(name), level: h.level}
	if h.secondary != nil {
		t.secondary = h.secondary.WithGroup(name)
	}
	return t
}

func withAttrs(h slog.Handler, attrs []slog.Attr) slog.Handler {
	if h == nil {
		return nil
	}
	return h.WithAttrs(attrs)
}

// ParseLevel converts a level name (debug, info, warn, error) to a slog.Level.
// Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures New.
type Options struct {
	Level     string    // Console level
	File      string    // Diagnostic log path; empty disables the file
	FileLevel string    // Minimum level written to File
	Stdout    io.Writer // Defaults to os.Stdout
}

// New builds the application logger: a text handler on stdout teed into an
// append-only diagnostic file. The returned closer releases the file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	console := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})

	if opts.File == "" {
		return slog.New(console), io.NopCloser(nil), nil
	}

	if dir := filepath.Dir(opts.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening diagnostic log: %w", err)
	}

	fileLevel := ParseLevel(opts.FileLevel)
	file := slog.NewTextHandler(f, &slog.HandlerOptions{Level: fileLevel})
	return slog.New(NewTeeHandler(console, file, fileLevel)), f, nil
}
