/*
 *   Copyright 2023 Martin Proffitt <mproffitt@choclab.net>
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapipeline/zkv/pkg/types"
)

func setupSuite(t *testing.T, contents string) func(t *testing.T) {
	t.Log("Setting up config suite")
	tempDir := t.TempDir()
	ConfigPath = func() string {
		return filepath.Join(tempDir, "config.yaml")
	}
	OfflineStorePath = func() string {
		return filepath.Join(tempDir, "offline.db")
	}
	if contents != "" {
		require.NoError(t, os.WriteFile(ConfigPath(), []byte(contents), 0600))
	}

	return func(t *testing.T) {
		ConfigPath = getConfigPath
		OfflineStorePath = getOfflineStorePath
	}
}

func TestConfig_Load(t *testing.T) {
	teardownSuite := setupSuite(t, `
server: https://vault.example
username: alice
kdf:
  memory: 32768
  time: 2
session:
  inactivityLock: true
  inactivityTimeout: 30m
share:
  ttl: 1h
`)
	defer teardownSuite(t)

	c := New()
	require.NoError(t, c.Load())

	assert.Equal(t, "https://vault.example", c.Server)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, types.KDFParams{Memory: 32768, Time: 2, Parallelism: types.DefaultKDFParallelism}, c.KDF)
	assert.True(t, c.Session.InactivityLock)
	assert.Equal(t, 30*time.Minute, c.Session.InactivityTimeout)
	assert.True(t, c.Session.VisibilityLock, "unset keys keep their default")
	assert.Equal(t, time.Hour, c.Share.TTL)
}

func TestConfig_Defaults(t *testing.T) {
	teardownSuite := setupSuite(t, "")
	defer teardownSuite(t)

	c := New()
	require.NoError(t, c.Load())
	assert.Equal(t, types.DefaultKDFParams(), c.KDF)
	assert.False(t, c.Session.InactivityLock)
	assert.True(t, c.Session.VisibilityLock)
	assert.Equal(t, 5*time.Minute, c.Session.HiddenThreshold)
	assert.Equal(t, filepath.Join(filepath.Dir(ConfigPath()), "offline.db"), c.OfflineStoreFile())
	assert.Equal(t, "zkv://local", c.ShareBase())
}

func TestConfig_EnvOverrides(t *testing.T) {
	teardownSuite := setupSuite(t, "server: https://file.example\n")
	defer teardownSuite(t)

	t.Setenv("ZKV_SERVER", "https://env.example")
	t.Setenv("ZKV_KDF_TIME", "5")
	t.Setenv("ZKV_INACTIVITY_TIMEOUT", "2m")

	c := New()
	require.NoError(t, c.Load())
	assert.Equal(t, "https://env.example", c.Server)
	assert.Equal(t, uint32(5), c.KDF.Time)
	assert.Equal(t, 2*time.Minute, c.Session.InactivityTimeout)

	opts := c.SessionOptions()
	assert.Equal(t, uint32(5), opts.Params.Time)
	assert.Equal(t, 2*time.Minute, opts.InactivityTimeout)
}

func TestConfig_Invalid(t *testing.T) {
	teardownSuite := setupSuite(t, "kdf:\n  memory: 1\n  parallelism: 4\n")
	defer teardownSuite(t)

	c := New()
	assert.IsType(t, types.InvalidKDFParamsError{}, c.Load())
}

func TestConfig_MergeAndSave(t *testing.T) {
	teardownSuite := setupSuite(t, "")
	defer teardownSuite(t)

	c := New()
	c.Merge(types.ClientCmd{Server: "https://flag.example", Username: "bob", Debug: true})
	assert.Equal(t, "https://flag.example", c.Server)
	assert.Equal(t, "https://flag.example", c.ShareBase())
	assert.Equal(t, zerolog.DebugLevel, c.LogLevel())

	c.Merge(types.ClientCmd{Quiet: true})
	assert.Equal(t, "bob", c.Username)
	assert.Equal(t, zerolog.ErrorLevel, c.LogLevel())

	require.NoError(t, c.Save())
	info, err := os.Stat(ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := New()
	require.NoError(t, loaded.Load())
	assert.Equal(t, c, loaded)
}
