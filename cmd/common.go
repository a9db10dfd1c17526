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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/hokaccha/go-prettyjson"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/notapipeline/zkv/pkg/breach"
	"github.com/notapipeline/zkv/pkg/config"
	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/remote"
	"github.com/notapipeline/zkv/pkg/session"
	"github.com/notapipeline/zkv/pkg/share"
	"github.com/notapipeline/zkv/pkg/tools"
	"github.com/notapipeline/zkv/pkg/transport"
)

const maxRetryElapsed = 2 * time.Minute

var (
	errNoUsername       = errors.New("no username specified, use --username or set ZKV_USERNAME")
	errNoServer         = errors.New("no server specified, use --server or --offline")
	errPasswordMismatch = errors.New("passwords do not match")
	errUnknownOutput    = errors.New("unknown output format")
)

// backend is everything the client needs from a vault server
type backend interface {
	io.Closer
	session.Remote
	session.Registrar
	share.Store
}

// These functions are referenced as variables to enable them to
// be mocked in tests
var (
	getSecret func(what, description string) ([]byte, error) = func(what, description string) ([]byte, error) {
		return tools.GetSecret(what, "zkv", description, "Password:", true)
	}

	readLine func(prompt string) (string, error) = tools.ReadLine

	writeClipboard func(text string) error = clipboard.WriteAll

	newBackend func(c *config.Config) (backend, error) = func(c *config.Config) (backend, error) {
		if c.Offline {
			m, err := remote.OpenMemory(c.OfflineStoreFile())
			if err != nil {
				return nil, err
			}
			return m, nil
		}
		if c.Server == "" {
			return nil, errNoServer
		}
		h := remote.NewHTTP(c.Server)
		h.Client = transport.NewClient(c.Timeout, maxRetryElapsed)
		return h, nil
	}

	newRangeClient func(c *config.Config) breach.RangeClient = func(c *config.Config) breach.RangeClient {
		r := breach.NewHTTPRange(c.Breach.Endpoint)
		r.Client = transport.NewClient(c.Timeout, maxRetryElapsed)
		return r
	}
)

// openSession unlocks the vault of the configured user. Callers must Close
// the returned session.
func openSession(ctx context.Context, be backend) (*session.Session, error) {
	if cfg.Username == "" {
		return nil, errNoUsername
	}

	s, err := session.New(be, cfg.SessionOptions())
	if err != nil {
		return nil, err
	}

	password, err := getSecret("ZKV_PASSWORD", fmt.Sprintf("Master password for %s", cfg.Username))
	if err != nil {
		s.Close()
		return nil, err
	}
	defer crypto.Wipe(password)

	state, err := s.Unlock(ctx, cfg.Username, password)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Debug().Str("state", state.String()).Msg("vault unlocked")
	return s, nil
}

// newPassword asks for a password twice
func newPassword(what, description string) ([]byte, error) {
	first, err := getSecret(what, description)
	if err != nil {
		return nil, err
	}
	second, err := getSecret(what, "Confirm: "+description)
	if err != nil {
		crypto.Wipe(first)
		return nil, err
	}
	defer crypto.Wipe(second)

	if string(first) != string(second) {
		crypto.Wipe(first)
		return nil, errPasswordMismatch
	}
	return first, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	formatter := prettyjson.NewFormatter()
	formatter.DisabledColor = cmd.OutOrStdout() != os.Stdout || !term.IsTerminal(int(os.Stdout.Fd()))

	b, err := formatter.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// render writes rows as a table, or v as json when --output json is set
func render(cmd *cobra.Command, v any, header table.Row, rows []table.Row) error {
	switch clientCmd.Output {
	case "json":
		return printJSON(cmd, v)
	case "table", "":
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(header)
		t.AppendRows(rows)
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	}
	return fmt.Errorf("%w: %s", errUnknownOutput, clientCmd.Output)
}
