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
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
	"github.com/notapipeline/zkv/pkg/vault"
)

var ErrDuressMatchesReal = errors.New("duress password must differ from the account password")

// Vault returns a copy of the decrypted vault
func (s *Session) Vault() (*types.VaultData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsUnlocked() {
		return nil, types.ErrSessionLocked
	}
	return s.vault.Clone(), nil
}

// snapshot is what an update pipeline needs from the session
type snapshot struct {
	epoch    uint64
	key      *crypto.Key
	authHash string
	salt     types.Salt
	username string
	slot     types.Slot
	vault    *types.VaultData
}

func (s *Session) snapshot() (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsUnlocked() || s.keys == nil {
		return nil, types.ErrSessionLocked
	}
	s.lastActivity = s.opts.Clock.Now()
	return &snapshot{
		epoch:    s.epoch,
		key:      s.keys.EncryptionKey,
		authHash: s.keys.AuthHash,
		salt:     s.keys.Salt,
		username: s.username,
		slot:     s.slot,
		vault:    s.vault.Clone(),
	}, nil
}

func (s *Session) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// UpdateVault applies mutate to a copy of the vault, re-encrypts it with the
// held key and pushes it to the slot this session unlocked.
//
// Returns types.ErrSessionLocked if no key is held, or if the session was
// locked before the new vault could be committed.
func (s *Session) UpdateVault(ctx context.Context, mutate vault.Mutator) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	snap, err := s.snapshot()
	if err != nil {
		return err
	}

	if err = mutate(snap.vault); err != nil {
		return err
	}

	blob, err := vault.EncryptVault(snap.vault, snap.key)
	if errors.Is(err, types.ErrKeyDestroyed) {
		return types.ErrSessionLocked
	}
	if err != nil {
		return err
	}

	if !s.current(snap.epoch) {
		return types.ErrSessionLocked
	}

	if err = s.remote.PutVault(ctx, snap.username, snap.authHash, snap.slot, blob); err != nil {
		return fmt.Errorf("store vault: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != snap.epoch {
		log.Debug().Msg("session locked during update, discarding result")
		return types.ErrSessionLocked
	}
	s.vault = snap.vault
	s.recovered = false
	return nil
}

// EnrollDuress sets up a duress identity for the unlocked real session.
//
// The duress password gets its own salt and the decoy vault is sealed under
// the resulting key. The call is authorised with the real identity's
// digest.
func (s *Session) EnrollDuress(ctx context.Context, r Registrar, duressPassword []byte, decoy *types.VaultData) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != StateUnlocked || s.keys == nil {
		s.mu.Unlock()
		return types.ErrSessionLocked
	}
	var (
		epoch    uint64     = s.epoch
		username string     = s.username
		authHash string     = s.keys.AuthHash
		realSalt types.Salt = s.keys.Salt
	)
	s.mu.Unlock()

	// Reject a duress password that would verify as the real one
	same, err := crypto.DeriveKeys(duressPassword, realSalt, s.opts.Params)
	if err != nil {
		return err
	}
	matches := same.AuthHash == authHash
	same.Destroy()
	if matches {
		return ErrDuressMatchesReal
	}

	keys, err := crypto.DeriveKeys(duressPassword, nil, s.opts.Params)
	if err != nil {
		return err
	}
	defer keys.Destroy()

	if decoy == nil {
		decoy = types.NewVaultData(s.opts.Clock.Now())
	}
	blob, err := vault.EncryptVault(decoy, keys.EncryptionKey)
	if err != nil {
		return err
	}

	if !s.current(epoch) {
		return types.ErrSessionLocked
	}
	return r.EnrollDuress(ctx, types.DuressRequest{
		Username:       username,
		AuthHash:       authHash,
		DuressSalt:     keys.Salt,
		DuressAuthHash: keys.AuthHash,
		Decoy:          blob,
	})
}

// Register creates a new account: a fresh salt, the authentication digest
// and an empty vault sealed under the derived key. Only those three things
// are sent.
func Register(ctx context.Context, r Registrar, username string, password []byte, opts Options) (types.Salt, error) {
	opts = opts.withDefaults()
	keys, err := crypto.DeriveKeys(password, nil, opts.Params)
	if err != nil {
		return nil, err
	}
	defer keys.Destroy()

	blob, err := vault.EncryptVault(types.NewVaultData(opts.Clock.Now()), keys.EncryptionKey)
	if err != nil {
		return nil, err
	}

	if err = r.Register(ctx, types.RegisterRequest{
		Username: username,
		Salt:     keys.Salt,
		AuthHash: keys.AuthHash,
		Vault:    blob,
	}); err != nil {
		return nil, err
	}
	return keys.Salt, nil
}
