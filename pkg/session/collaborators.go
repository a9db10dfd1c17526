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
package session

import (
	"errors"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/duplicates"
	"github.com/notapipeline/zkv/pkg/types"
)

// These functions are referenced as variables to enable them to
// be mocked in tests
var (
	scanDuplicates func(key *crypto.Key, entries []duplicates.EncryptedEntry) []duplicates.Group = duplicates.Scan
)

// withKey runs fn with the held key. The key is only borrowed for the
// duration of fn; a lock that lands meanwhile makes fn fail.
func (s *Session) withKey(fn func(key *crypto.Key) error) error {
	s.mu.Lock()
	if !s.state.IsUnlocked() || s.keys == nil {
		s.mu.Unlock()
		return types.ErrSessionLocked
	}
	key := s.keys.EncryptionKey
	s.lastActivity = s.opts.Clock.Now()
	s.mu.Unlock()

	err := fn(key)
	if errors.Is(err, types.ErrKeyDestroyed) {
		return types.ErrSessionLocked
	}
	return err
}

// SealEntries returns the entries of the open vault with each field sealed
// separately, the form in which a server holds per entry ciphertext.
func (s *Session) SealEntries() ([]duplicates.EncryptedEntry, error) {
	v, err := s.Vault()
	if err != nil {
		return nil, err
	}

	var sealed []duplicates.EncryptedEntry
	err = s.withKey(func(key *crypto.Key) (e error) {
		sealed, e = duplicates.Seal(v.Entries, key)
		return
	})
	return sealed, err
}

// FindDuplicates groups entries sealed under this session's key by shared
// password.
func (s *Session) FindDuplicates(entries []duplicates.EncryptedEntry) ([]duplicates.Group, error) {
	var groups []duplicates.Group
	err := s.withKey(func(key *crypto.Key) error {
		if !key.Alive() {
			return types.ErrKeyDestroyed
		}
		found := scanDuplicates(key, entries)
		// A key destroyed mid-scan leaves every field unreadable
		if !key.Alive() {
			return types.ErrKeyDestroyed
		}
		groups = found
		return nil
	})
	return groups, err
}
