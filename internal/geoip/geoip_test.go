// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package geoip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_InitEmptyPathDisables(t *testing.T) {
	g := NewLookup()
	require.NoError(t, g.Init(""))
	assert.False(t, g.IsEnabled())
	require.NoError(t, g.Reload())

	_, ok := g.LookupLocation("8.8.8.8")
	assert.False(t, ok)
}

func TestLookup_InitMissingFile(t *testing.T) {
	g := NewLookup()
	err := g.Init(filepath.Join(t.TempDir(), "missing.mmdb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.False(t, g.IsEnabled())
}

func TestLookup_InitCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("not a maxmind database"), 0o600))

	g := NewLookup()
	err := g.Init(path)
	require.Error(t, err)
	assert.False(t, g.IsEnabled())
}

func TestLookup_UninitializedReturnsNothing(t *testing.T) {
	g := NewLookup()
	_, ok := g.LookupLocation("8.8.8.8")
	assert.False(t, ok)
	assert.NoError(t, g.Close())
}
