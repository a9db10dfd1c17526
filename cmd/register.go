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
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/session"
)

var saveConfig bool

// registerCmd creates a new account with an empty vault
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	Long: `Create a new account on the server.

A random salt is generated and your master password is stretched locally with
Argon2id. The server receives the salt, an authentication digest and an empty
encrypted vault. It never sees the password or the encryption key.

Use --save to write the server and username to the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Username == "" {
			return errNoUsername
		}

		be, err := newBackend(cfg)
		if err != nil {
			return err
		}
		defer be.Close()

		password, err := newPassword("ZKV_PASSWORD", fmt.Sprintf("Choose a master password for %s", cfg.Username))
		if err != nil {
			return err
		}
		defer crypto.Wipe(password)

		if _, err = session.Register(cmd.Context(), be, cfg.Username, password, cfg.SessionOptions()); err != nil {
			return err
		}
		log.Info().Str("username", cfg.Username).Msg("account registered")

		if saveConfig {
			if err = cfg.Save(); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", cfg.Username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().BoolVar(&saveConfig, "save", false, "save server and username to the config file")
}
