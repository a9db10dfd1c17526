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
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Find entries sharing a password",
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

		sealed, err := s.SealEntries()
		if err != nil {
			return err
		}
		groups, err := s.FindDuplicates(sealed)
		if err != nil {
			return err
		}

		v, err := s.Vault()
		if err != nil {
			return err
		}
		rows := make([]table.Row, 0, len(groups))
		for i, g := range groups {
			titles := make([]string, 0, len(g.EntryIDs))
			for _, id := range g.EntryIDs {
				if e := v.Entry(id); e != nil {
					titles = append(titles, e.Title)
				}
			}
			rows = append(rows, table.Row{i + 1, strings.Join(titles, ", ")})
		}
		return render(cmd, groups, table.Row{"Group", "Entries"}, rows)
	},
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)
}
