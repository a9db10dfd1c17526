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

	"github.com/notapipeline/zkv/pkg/share"
)

var shareRequest struct {
	entry string
	text  string
}

// sharedText is the payload of a --text share
type sharedText struct {
	Text string `json:"text"`
}

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Send and receive one time secrets",
	Long: `Send and receive one time secrets.

A share is encrypted with a fresh random key. The key only ever appears in
the fragment of the link so the server stores ciphertext it cannot read.
Opening a share deletes it from the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var shareCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a one time link for an entry or some text",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (shareRequest.entry == "") == (shareRequest.text == "") {
			return fmt.Errorf("specify exactly one of --entry or --text")
		}

		be, err := newBackend(cfg)
		if err != nil {
			return err
		}
		defer be.Close()

		var payload any = sharedText{Text: shareRequest.text}
		if shareRequest.entry != "" {
			s, err := openSession(cmd.Context(), be)
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.Vault()
			if err != nil {
				return err
			}
			entry, err := findEntry(v, shareRequest.entry)
			if err != nil {
				return err
			}
			payload = entry
		}

		link, err := share.NewClient(be, cfg.ShareBase()).Send(cmd.Context(), payload, cfg.Share.TTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}

var shareOpenCmd = &cobra.Command{
	Use:   "open <link>",
	Short: "Open a one time link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := newBackend(cfg)
		if err != nil {
			return err
		}
		defer be.Close()

		var payload map[string]any
		if err = share.NewClient(be, cfg.ShareBase()).Receive(cmd.Context(), args[0], &payload); err != nil {
			return err
		}
		return printJSON(cmd, payload)
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
	shareCmd.AddCommand(shareCreateCmd)
	shareCmd.AddCommand(shareOpenCmd)

	shareCreateCmd.Flags().StringVarP(&shareRequest.entry, "entry", "e", "", "id or title of the entry to share")
	shareCreateCmd.Flags().StringVar(&shareRequest.text, "text", "", "text to share")
}
