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

// Package duplicates finds entries that share a password without keeping
// the passwords around. Each decrypted password is reduced to a SHA-256
// fingerprint as soon as it is read.
package duplicates

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/tools"
	"github.com/notapipeline/zkv/pkg/types"
	"github.com/notapipeline/zkv/pkg/vault"
)

// CHUNKSIZE is the number of entries handled by each worker
const CHUNKSIZE = 50

const PasswordField = "password"

// EncryptedEntry is an entry as held by the server, each field sealed
// separately
type EncryptedEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Group is a set of entries sharing one password
type Group struct {
	EntryIDs []string `json:"entryIds"`
}

type fingerprint struct {
	id   string
	hash string
}

// Scan decrypts the password field of every entry and groups the ids of
// entries whose passwords match. Entries that cannot be decrypted, or have
// no password, are skipped.
func Scan(key *crypto.Key, entries []EncryptedEntry) []Group {
	var (
		chunks  [][]EncryptedEntry = tools.ChunkSplit(entries, CHUNKSIZE)
		results chan fingerprint   = make(chan fingerprint)
		wg      sync.WaitGroup
	)

	for _, chunk := range chunks {
		wg.Add(1)
		go func(mychunk []EncryptedEntry) {
			defer wg.Done()
			for _, entry := range mychunk {
				if hash, ok := fingerprintOf(entry, key); ok {
					results <- fingerprint{id: entry.ID, hash: hash}
				}
			}
		}(chunk)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	byHash := make(map[string][]string)
	for f := range results {
		byHash[f.hash] = append(byHash[f.hash], f.id)
	}

	groups := make([]Group, 0)
	for _, ids := range byHash {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		groups = append(groups, Group{EntryIDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].EntryIDs[0] < groups[j].EntryIDs[0]
	})
	return groups
}

func fingerprintOf(entry EncryptedEntry, key *crypto.Key) (string, bool) {
	sealed, ok := entry.Fields[PasswordField]
	if !ok || sealed == "" {
		return "", false
	}

	decrypted := vault.DecryptFields(map[string]string{PasswordField: sealed}, key)
	password := decrypted[PasswordField]
	if password == nil {
		log.Debug().Str("entry", entry.ID).Msg("skipping undecryptable entry")
		return "", false
	}
	if *password == "" {
		return "", false
	}

	plain := []byte(*password)
	digest := sha256.Sum256(plain)
	crypto.Wipe(plain)
	return hex.EncodeToString(digest[:]), true
}

// Seal converts vault entries into their per field server form
func Seal(entries []types.VaultEntry, key *crypto.Key) ([]EncryptedEntry, error) {
	sealed := make([]EncryptedEntry, 0, len(entries))
	for _, e := range entries {
		fields, err := vault.EncryptFields(map[string]string{
			"title":       e.Title,
			"username":    e.Username,
			PasswordField: e.Password,
		}, key)
		if err != nil {
			return nil, err
		}
		sealed = append(sealed, EncryptedEntry{ID: e.ID, Fields: fields})
	}
	return sealed, nil
}
