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
package cmd

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapipeline/zkv/pkg/breach"
	"github.com/notapipeline/zkv/pkg/config"
	"github.com/notapipeline/zkv/pkg/duplicates"
	"github.com/notapipeline/zkv/pkg/types"
)

const (
	realPassword   = "Tr0ub4dor&3"
	duressPassword = "decoy123"
)

// secrets answers getSecret by the name of the variable asked for
var secrets map[string]string

type fakeRange struct {
	suffixes []breach.Suffix
}

func (f *fakeRange) Range(_ context.Context, prefix string) ([]breach.Suffix, error) {
	return f.suffixes, nil
}

func setupSuite(t *testing.T, contents string) func(t *testing.T) {
	t.Log("Setting up cmd suite")
	tempDir := t.TempDir()

	var (
		ocp   = config.ConfigPath
		osp   = config.OfflineStorePath
		ofat  = fatal
		osec  = getSecret
		oline = readLine
		orng  = newRangeClient
		oclip = writeClipboard
		oargs = os.Args
	)

	config.ConfigPath = func() string {
		return filepath.Join(tempDir, "config.yaml")
	}
	config.OfflineStorePath = func() string {
		return filepath.Join(tempDir, "offline.db")
	}
	if err := os.WriteFile(config.ConfigPath(), []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}

	secrets = map[string]string{
		"ZKV_PASSWORD":        realPassword,
		"ZKV_DURESS_PASSWORD": duressPassword,
		"ZKV_ENTRY_PASSWORD":  "hunter2",
	}
	getSecret = func(what, description string) ([]byte, error) {
		if value, ok := secrets[what]; ok {
			return []byte(value), nil
		}
		return nil, fmt.Errorf("unexpected prompt for %s", what)
	}
	readLine = func(prompt string) (string, error) {
		return "", fmt.Errorf("unexpected prompt %q", prompt)
	}

	return func(t *testing.T) {
		config.ConfigPath = ocp
		config.OfflineStorePath = osp
		fatal = ofat
		getSecret = osec
		readLine = oline
		newRangeClient = orng
		writeClipboard = oclip
		os.Args = oargs
	}
}

const offlineConfig = `
username: alice
offline: true
kdf:
  memory: 1024
  time: 1
  parallelism: 1
`

// run executes the root command with args and returns what it printed and
// the error handed to fatal, if any.
func run(args ...string) (string, string) {
	clientCmd = types.ClientCmd{Output: "table"}
	newEntry = types.VaultEntry{}
	shareRequest.entry, shareRequest.text = "", ""
	breachEntry, showPassword, copyPassword, saveConfig = "", false, false, false
	decoyEntries = []string{}

	var failure string
	fatal = func(format string, v ...interface{}) {
		failure = fmt.Sprintf(format, v...)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	os.Args = append([]string{"zkv"}, args...)
	Execute()
	return buf.String(), failure
}

func mustRun(t *testing.T, args ...string) string {
	out, failure := run(args...)
	require.Empty(t, failure, "zkv %s", strings.Join(args, " "))
	return out
}

func TestRootCmdShowsHelp(t *testing.T) {
	teardownSuite := setupSuite(t, offlineConfig)
	defer teardownSuite(t)

	out := mustRun(t)
	assert.Contains(t, out, "Zero knowledge vault client")
	assert.Contains(t, out, "register")
}

func TestOfflineVault(t *testing.T) {
	teardownSuite := setupSuite(t, offlineConfig)
	defer teardownSuite(t)

	assert.Contains(t, mustRun(t, "register"), "Registered alice")
	_, err := os.Stat(config.OfflineStorePath())
	require.NoError(t, err)

	mail := strings.TrimSpace(mustRun(t, "add", "--title", "Mail", "--login", "alice@example.com"))
	forum := strings.TrimSpace(mustRun(t, "add", "--title", "Forum"))
	require.NotEmpty(t, mail)
	require.NotEqual(t, mail, forum)

	var entries []types.VaultEntry
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "-o", "json")), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Mail", entries[0].Title)
	assert.Empty(t, entries[0].Password)

	table := mustRun(t, "list")
	assert.Contains(t, table, "Mail")
	assert.Contains(t, table, "alice@example.com")
	assert.NotContains(t, table, "hunter2")

	var entry types.VaultEntry
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "get", "mail")), &entry))
	assert.Equal(t, masked, entry.Password)
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "get", mail, "--show")), &entry))
	assert.Equal(t, "hunter2", entry.Password)
	assert.Equal(t, 1, entry.UsageCount)

	var copied string
	writeClipboard = func(text string) error {
		copied = text
		return nil
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "get", "Mail", "--copy")), &entry))
	assert.Equal(t, "hunter2", copied)
	assert.Equal(t, masked, entry.Password)

	var groups []duplicates.Group
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "duplicates", "-o", "json")), &groups))
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{mail, forum}, groups[0].EntryIDs)

	mustRun(t, "remove", "Forum")
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "list", "-o", "json")), &entries))
	require.Len(t, entries, 1)

	// The offline store never holds the password in the clear
	raw, err := os.ReadFile(config.OfflineStorePath())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.NotContains(t, string(raw), realPassword)
}

func TestDuressVault(t *testing.T) {
	teardownSuite := setupSuite(t, offlineConfig)
	defer teardownSuite(t)

	mustRun(t, "register")
	mustRun(t, "add", "--title", "Bank")
	mustRun(t, "duress", "enroll", "--entry", "Email", "--entry", "Shopping")

	secrets["ZKV_PASSWORD"] = duressPassword
	out := mustRun(t, "list")
	assert.Contains(t, out, "Email")
	assert.Contains(t, out, "Shopping")
	assert.NotContains(t, out, "Bank")

	mustRun(t, "add", "--title", "Decoy")

	secrets["ZKV_PASSWORD"] = realPassword
	out = mustRun(t, "list")
	assert.Contains(t, out, "Bank")
	assert.NotContains(t, out, "Decoy")
	assert.NotContains(t, out, "Email")
}

func TestShare(t *testing.T) {
	teardownSuite := setupSuite(t, offlineConfig)
	defer teardownSuite(t)

	link := strings.TrimSpace(mustRun(t, "share", "create", "--text", "the eagle has landed"))
	assert.True(t, strings.HasPrefix(link, "zkv://local/s/"))

	var payload sharedText
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "share", "open", link)), &payload))
	assert.Equal(t, "the eagle has landed", payload.Text)

	_, failure := run("share", "open", link)
	assert.Contains(t, failure, types.ErrShareAlreadyConsumed.Error())

	_, failure = run("share", "create")
	assert.Contains(t, failure, "exactly one of")
}

func TestBreach(t *testing.T) {
	digest := sha1.Sum([]byte("hunter2"))
	suffix := strings.ToUpper(hex.EncodeToString(digest[:]))[breach.PrefixLength:]

	tests := []struct {
		name     string
		suffixes []breach.Suffix
		args     []string
		expected string
	}{
		{
			name:     "prompted password found",
			suffixes: []breach.Suffix{{Hash: suffix, Count: 17}},
			expected: "found in 17 breaches",
		},
		{
			name:     "prompted password not found",
			expected: "not found",
		},
		{
			name:     "entry password found",
			suffixes: []breach.Suffix{{Hash: suffix, Count: 3}},
			args:     []string{"--entry", "Mail"},
			expected: "found in 3 breaches",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			teardownSuite := setupSuite(t, offlineConfig)
			defer teardownSuite(t)
			secrets["ZKV_CHECK_PASSWORD"] = "hunter2"
			newRangeClient = func(c *config.Config) breach.RangeClient {
				return &fakeRange{suffixes: test.suffixes}
			}

			mustRun(t, "register")
			mustRun(t, "add", "--title", "Mail")
			out := mustRun(t, append([]string{"breach"}, test.args...)...)
			assert.Contains(t, out, test.expected)
		})
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		setup    func()
		args     []string
		expected string
	}{
		{
			name:     "wrong password",
			config:   offlineConfig,
			setup:    func() { secrets["ZKV_PASSWORD"] = "wrong" },
			args:     []string{"list"},
			expected: types.ErrInvalidPassword.Error(),
		},
		{
			name:     "password confirmation mismatch",
			config:   offlineConfig,
			setup:    func() { getSecret = alternating(realPassword, "typo") },
			args:     []string{"register"},
			expected: errPasswordMismatch.Error(),
		},
		{
			name:     "no server",
			config:   "username: alice\n",
			args:     []string{"list"},
			expected: errNoServer.Error(),
		},
		{
			name:     "no username",
			config:   "offline: true\n",
			args:     []string{"list"},
			expected: errNoUsername.Error(),
		},
		{
			name:     "unknown output",
			config:   offlineConfig,
			args:     []string{"list", "-o", "yaml"},
			expected: errUnknownOutput.Error(),
		},
		{
			name:     "unknown entry",
			config:   offlineConfig,
			args:     []string{"get", "nothing"},
			expected: types.ErrEntryNotFound.Error(),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			teardownSuite := setupSuite(t, test.config)
			defer teardownSuite(t)
			if strings.Contains(test.config, "offline") && strings.Contains(test.config, "alice") {
				mustRun(t, "register")
			}
			if test.setup != nil {
				test.setup()
			}

			_, failure := run(test.args...)
			assert.Contains(t, failure, test.expected)
		})
	}
}

func alternating(values ...string) func(what, description string) ([]byte, error) {
	i := 0
	return func(what, description string) ([]byte, error) {
		v := values[i%len(values)]
		i++
		return []byte(v), nil
	}
}

func TestRegisterSavesConfig(t *testing.T) {
	teardownSuite := setupSuite(t, "offline: true\n")
	defer teardownSuite(t)

	mustRun(t, "--username", "bob", "register", "--save")

	c := config.New()
	require.NoError(t, c.Load())
	assert.Equal(t, "bob", c.Username)
	assert.True(t, c.Offline)
}
