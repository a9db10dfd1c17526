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
	"encoding/base64"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
	"github.com/notapipeline/zkv/pkg/vault"
)

var decoyEntries []string

var duressCmd = &cobra.Command{
	Use:   "duress",
	Short: "Manage the duress password",
	Long: `A duress password opens a decoy vault that looks like the real thing.

Unlocking with it is indistinguishable from a normal unlock, both in timing
and in what the client shows. Changes made while in the decoy only ever touch
the decoy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var duressEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Set the duress password and its decoy vault",
	Long: `Set the duress password and its decoy vault.

You are asked for your master password first and then for the new duress
password. Each --entry becomes an entry in the decoy vault with a random
password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := newBackend(cfg)
		if err != nil {
			return err
		}
		defer be.Close()

		s, err := openSession(cmd.Context(), be)
		if err != nil {
			return err
		}
		defer s.Close()

		password, err := newPassword("ZKV_DURESS_PASSWORD", "Choose a duress password")
		if err != nil {
			return err
		}
		defer crypto.Wipe(password)

		decoy, err := decoyVault(decoyEntries, time.Now())
		if err != nil {
			return err
		}

		if err = s.EnrollDuress(cmd.Context(), be, password, decoy); err != nil {
			return err
		}
		log.Info().Int("entries", len(decoy.Entries)).Msg("duress password enrolled")
		return nil
	},
}

func decoyVault(titles []string, now time.Time) (*types.VaultData, error) {
	decoy := types.NewVaultData(now)
	for _, title := range titles {
		password, err := randomPassword()
		if err != nil {
			return nil, err
		}
		if err = vault.AddEntry(types.VaultEntry{Title: title, Password: password}, now)(decoy); err != nil {
			return nil, err
		}
	}
	return decoy, nil
}

func randomPassword() (string, error) {
	b, err := crypto.RandomBytes(18)
	if err != nil {
		return "", err
	}
	defer crypto.Wipe(b)
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func init() {
	rootCmd.AddCommand(duressCmd)
	duressCmd.AddCommand(duressEnrollCmd)
	duressEnrollCmd.Flags().StringSliceVarP(&decoyEntries, "entry", "e", []string{}, "title of a decoy entry (may be specified multiple times)")
}
