// Copyright (c) 2023 The mimbled developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/mimblenet/mimbled/types/chaincfg"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	params, err := cfg.NetParams()
	require.NoError(t, err)
	assert.Equal(t, &chaincfg.MainNetParams, params)

	level, err := cfg.ZerologLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
	assert.Equal(t, uint64(defaultMaxPoolWeight), cfg.Node.MaxPoolWeight)
}

func TestLoadFileAndFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mimbled.yaml")
	yaml := `
node:
  net: testnet
  log_level: debug
  max_pool_weight: 5000
log_config:
  logs_as_json: true
`
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o600))

	// File values overlay the defaults.
	cfg, err := Load([]string{"-C", file})
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Node.Net)
	assert.Equal(t, uint64(5000), cfg.Node.MaxPoolWeight)
	assert.True(t, cfg.LogConfig.LogsAsJSON)

	// Flags overlay the file.
	cfg, err = Load([]string{"-C", file, "--node.net", "simnet"})
	require.NoError(t, err)
	assert.Equal(t, "simnet", cfg.Node.Net)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load([]string{"--node.net", "betanet"})
	assert.Error(t, err)

	_, err = Load([]string{"--node.loglevel", "shout"})
	assert.Error(t, err)

	_, err = Load([]string{"-C", "does-not-exist.yaml"})
	assert.Error(t, err)
}
