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
	"os"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notapipeline/zkv/pkg/config"
	"github.com/notapipeline/zkv/pkg/types"
)

var clientCmd types.ClientCmd = types.ClientCmd{}

// cfg is populated by the root command before any subcommand runs
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zkv",
	Short: "Zero knowledge vault client",
	Long: `
Zero knowledge vault client

Passwords never leave this machine. The vault is encrypted locally with a key
derived from your master password and only ciphertext is sent to the server.

Run with --offline to keep the encrypted vault in a local file instead of
talking to a server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadClientConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		fatal("Error: %s", err)
	}
}

// These functions are referenced as variables to enable them to
// be mocked in tests
var fatal func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
	memguard.SafeExit(1)
}

func init() {
	// These are consistent across all commands
	rootCmd.PersistentFlags().StringVar(&clientCmd.Config, "config", "", "config file (default is $HOME/.config/zkv/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&clientCmd.Server, "server", "", "address of the vault server")
	rootCmd.PersistentFlags().StringVarP(&clientCmd.Username, "username", "u", "", "account name")
	rootCmd.PersistentFlags().BoolVar(&clientCmd.Offline, "offline", false, "keep the vault in a local file instead of a server")
	rootCmd.PersistentFlags().BoolVar(&clientCmd.Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&clientCmd.Quiet, "quiet", false, "only log errors")
	rootCmd.PersistentFlags().StringVarP(&clientCmd.Output, "output", "o", "table", "output format, one of table or json")
}

func loadClientConfig() (err error) {
	if clientCmd.Config != "" {
		path := clientCmd.Config
		config.ConfigPath = func() string {
			return path
		}
	}

	c := config.New()
	if err = c.Load(); err != nil {
		return err
	}
	c.Merge(clientCmd)

	zerolog.SetGlobalLevel(c.LogLevel())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg = c
	return nil
}
