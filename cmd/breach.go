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

	"github.com/spf13/cobra"

	"github.com/notapipeline/zkv/pkg/breach"
	"github.com/notapipeline/zkv/pkg/crypto"
)

var breachEntry string

var breachCmd = &cobra.Command{
	Use:   "breach",
	Short: "Check a password against known breaches",
	Long: `Check a password against known breaches.

Only the first five characters of the password's SHA-1 fingerprint are sent
to the breach service. Without --entry the password is prompted for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			password []byte
			err      error
		)

		if breachEntry != "" {
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

			v, err := s.Vault()
			if err != nil {
				return err
			}
			entry, err := findEntry(v, breachEntry)
			if err != nil {
				return err
			}
			password = []byte(entry.Password)
		} else if password, err = getSecret("ZKV_CHECK_PASSWORD", "Password to check"); err != nil {
			return err
		}
		defer crypto.Wipe(password)

		count, err := breach.NewChecker(newRangeClient(cfg)).Check(cmd.Context(), password)
		if err != nil {
			return err
		}
		if count == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Password not found in any known breach")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password found in %d breaches\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(breachCmd)
	breachCmd.Flags().StringVarP(&breachEntry, "entry", "e", "", "id or title of an entry to check")
}
