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
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
	"github.com/notapipeline/zkv/pkg/vault"
)

var (
	newEntry     types.VaultEntry = types.VaultEntry{}
	showPassword bool
	copyPassword bool
)

const masked = "********"

// listCmd prints the entries of the unlocked vault
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault entries",
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

		v, err := s.Vault()
		if err != nil {
			return err
		}

		summaries := make([]types.VaultEntry, 0, len(v.Entries))
		rows := make([]table.Row, 0, len(v.Entries))
		for _, e := range v.Entries {
			e.Password = ""
			e.RecoveryCodes = nil
			summaries = append(summaries, e)
			rows = append(rows, table.Row{e.ID, e.Title, e.Username, e.URL, e.UsageCount})
		}
		return render(cmd, summaries, table.Row{"ID", "Title", "Username", "URL", "Used"}, rows)
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an entry to the vault",
	Long: `Add an entry to the vault.

The password for the entry is read from ZKV_ENTRY_PASSWORD or prompted for.
Without --title the title is prompted for as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := newEntry
		if entry.Title == "" {
			title, err := readLine("Title: ")
			if err != nil {
				return err
			}
			if entry.Title = strings.TrimSpace(title); entry.Title == "" {
				return fmt.Errorf("an entry needs a title")
			}
		}

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

		password, err := getSecret("ZKV_ENTRY_PASSWORD", fmt.Sprintf("Password for %s", entry.Title))
		if err != nil {
			return err
		}
		entry.Password = string(password)
		crypto.Wipe(password)

		if err = s.UpdateVault(cmd.Context(), vault.AddEntry(entry, time.Now())); err != nil {
			return err
		}

		v, err := s.Vault()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v.Entries[len(v.Entries)-1].ID)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id|title>",
	Short: "Show a single entry",
	Args:  cobra.ExactArgs(1),
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

		v, err := s.Vault()
		if err != nil {
			return err
		}
		entry, err := findEntry(v, args[0])
		if err != nil {
			return err
		}
		if err = s.UpdateVault(cmd.Context(), vault.RecordUsage(entry.ID, time.Now())); err != nil {
			return err
		}

		if copyPassword {
			if err = writeClipboard(entry.Password); err != nil {
				return err
			}
			log.Info().Str("entry", entry.Title).Msg("password copied to clipboard")
		}
		if !showPassword && entry.Password != "" {
			entry.Password = masked
		}
		return printJSON(cmd, entry)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <id|title>",
	Short: "Remove an entry from the vault",
	Args:  cobra.ExactArgs(1),
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

		v, err := s.Vault()
		if err != nil {
			return err
		}
		entry, err := findEntry(v, args[0])
		if err != nil {
			return err
		}
		return s.UpdateVault(cmd.Context(), vault.DeleteEntry(entry.ID, time.Now()))
	},
}

// findEntry matches on ID first and then on a case insensitive title
func findEntry(v *types.VaultData, what string) (types.VaultEntry, error) {
	if e := v.Entry(what); e != nil {
		return *e, nil
	}
	for _, e := range v.Entries {
		if strings.EqualFold(e.Title, what) {
			return e, nil
		}
	}
	return types.VaultEntry{}, fmt.Errorf("%w: %s", types.ErrEntryNotFound, what)
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(removeCmd)

	addCmd.Flags().StringVarP(&newEntry.Title, "title", "t", "", "title of the entry")
	addCmd.Flags().StringVar(&newEntry.Username, "login", "", "login name stored with the entry")
	addCmd.Flags().StringVar(&newEntry.Email, "email", "", "email address stored with the entry")
	addCmd.Flags().StringVar(&newEntry.URL, "url", "", "address of the site")
	addCmd.Flags().StringVar(&newEntry.Notes, "notes", "", "free text notes")

	getCmd.Flags().BoolVar(&showPassword, "show", false, "print the password instead of masking it")
	getCmd.Flags().BoolVarP(&copyPassword, "copy", "c", false, "copy the password to the clipboard")
}
