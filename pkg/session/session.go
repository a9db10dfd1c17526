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
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notapipeline/zkv/pkg/bus"
	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/duress"
	"github.com/notapipeline/zkv/pkg/types"
)

// Session owns the key handle and decrypted vault for one logged in user.
//
// Nothing outside the session ever holds the key. Every transition goes
// through Unlock, Lock, Touch, SetVisible or UpdateVault.
type Session struct {
	opts     Options
	remote   Remote
	resolver *duress.Resolver
	busToken bus.Token

	// opMu allows one update pipeline at a time
	opMu sync.Mutex

	mu           sync.Mutex
	state        State
	epoch        uint64
	keys         *crypto.DerivedKeys
	slot         types.Slot
	username     string
	vault        *types.VaultData
	recovered    bool
	lastActivity time.Time
	hiddenAt     time.Time
	lockReason   LockReason
	timer        Timer
}

// New creates a locked session. If opts.Bus is set the session subscribes
// to it and locks whenever another session broadcasts a revocation.
func New(remote Remote, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	s := &Session{
		opts:     opts,
		remote:   remote,
		resolver: duress.New(opts.Params),
		state:    StateLocked,
	}

	if opts.Bus != nil {
		token, err := opts.Bus.Subscribe(s.onEvent)
		if err != nil {
			return nil, fmt.Errorf("subscribe to revocation bus: %w", err)
		}
		s.busToken = token
	}
	return s, nil
}

func (s *Session) onEvent(e bus.Event) {
	log.Debug().Str("type", string(e.Type)).Msg("revocation received")
	s.Lock(ReasonRemote)
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:        s.state,
		Username:     s.username,
		LockReason:   s.lockReason,
		LastActivity: s.lastActivity,
		Recovered:    s.recovered,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unlock runs the full unlock pipeline for username and password.
//
// The password is never stored. On any failure the session returns to
// LOCKED with no key held, and a wrong password always surfaces as
// types.ErrInvalidPassword. If Lock is called while the pipeline is running
// the result is discarded and types.ErrSessionLocked is returned.
func (s *Session) Unlock(ctx context.Context, username string, password []byte) (State, error) {
	s.mu.Lock()
	switch s.state {
	case StateUnlocking:
		s.mu.Unlock()
		return StateUnlocking, types.ErrUnlockInProgress
	case StateUnlocked, StateDuressUnlocked:
		state := s.state
		s.mu.Unlock()
		return state, types.ErrAlreadyUnlocked
	}
	s.state = StateUnlocking
	s.lockReason = ReasonNone
	epoch := s.epoch
	s.mu.Unlock()

	res, err := s.acquire(ctx, username, password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.state = StateLocked
		if res != nil {
			res.keys.Destroy()
		}
		return StateLocked, types.ErrSessionLocked
	}
	if err != nil {
		s.state = StateLocked
		return StateLocked, err
	}

	s.keys = res.keys
	s.slot = res.slot
	s.vault = res.vault
	s.recovered = res.recovered
	s.username = username
	s.lastActivity = s.opts.Clock.Now()
	s.hiddenAt = time.Time{}
	s.state = StateUnlocked
	if res.slot == types.SlotDecoy {
		s.state = StateDuressUnlocked
	}
	s.armInactivity()

	log.Info().Str("username", username).Msg("session unlocked")
	return s.state, nil
}

type acquired struct {
	keys      *crypto.DerivedKeys
	slot      types.Slot
	vault     *types.VaultData
	recovered bool
}

func (s *Session) acquire(ctx context.Context, username string, password []byte) (*acquired, error) {
	if len(password) == 0 {
		return nil, types.ErrInvalidPassword
	}

	salts, err := s.remote.FetchSalts(ctx, username)
	if errors.Is(err, types.ErrUnknownUser) {
		s.burn(password)
		s.burn(password)
		return nil, types.ErrInvalidPassword
	}
	if err != nil {
		return nil, fmt.Errorf("fetch salts: %w", err)
	}

	var (
		memo     *duress.Memo = duress.NewMemo(s.derive(password))
		verified *crypto.DerivedKeys
		slot     types.Slot
		winner   *crypto.DerivedKeys
	)
	defer func() { memo.Release(winner) }()

	if verified, err = s.verify(ctx, memo, username, salts.Real); err != nil {
		return nil, err
	}
	slot = types.SlotReal

	// Every unlock runs two derivations and, with a duress identity
	// enrolled, two verifications, whichever password was supplied.
	if verified != nil {
		if salts.Duress.IsZero() {
			s.burn(password)
		} else if _, err = s.verify(ctx, memo, username, salts.Duress); err != nil {
			return nil, err
		}
	}

	if verified == nil {
		if salts.Duress.IsZero() {
			s.burn(password)
			return nil, types.ErrInvalidPassword
		}
		if verified, err = s.verify(ctx, memo, username, salts.Duress); err != nil {
			return nil, err
		}
		if verified == nil {
			return nil, types.ErrInvalidPassword
		}
		slot = types.SlotDecoy
	}

	// The verified identity's salt and digest are kept to authorise
	// later writes, regardless of which key the resolver returns.
	var (
		authHash     string     = verified.AuthHash
		verifiedSalt types.Salt = verified.Salt
		blobs        types.VaultBlobs
	)
	if blobs, err = s.remote.GetVault(ctx, username, authHash); err != nil {
		return nil, fmt.Errorf("fetch vault: %w", err)
	}

	res, err := s.resolver.ResolveWith(memo.Derive, duress.Input{
		RealSalt:   salts.Real,
		RealBlob:   blobs.Real,
		DuressSalt: salts.Duress,
		DecoyBlob:  blobs.Decoy,
	})
	if err == nil {
		resolved := types.SlotDecoy
		if res.IsReal {
			resolved = types.SlotReal
		}
		if resolved != slot {
			log.Warn().Msg("vault resolution disagrees with verified identity, using resolved vault")
		}
		winner = res.Keys
		return &acquired{keys: res.Keys, slot: resolved, vault: res.Vault}, nil
	}

	// Password proven but the stored vault is unusable. Start the verified
	// identity on an empty vault instead of locking the user out.
	log.Warn().Str("kind", "corrupted_vault").Msg("stored vault could not be opened, starting with an empty vault")
	if winner, err = memo.Derive(verifiedSalt); err != nil {
		return nil, err
	}
	return &acquired{
		keys:      winner,
		slot:      slot,
		vault:     types.NewVaultData(s.opts.Clock.Now()),
		recovered: true,
	}, nil
}

// verify derives keys for salt and asks the server whether the digest
// matches. Returns nil keys on a mismatch.
func (s *Session) verify(ctx context.Context, memo *duress.Memo, username string, salt types.Salt) (*crypto.DerivedKeys, error) {
	if salt.IsZero() {
		return nil, nil
	}
	keys, err := memo.Derive(salt)
	if err != nil {
		return nil, err
	}
	ok, err := s.remote.VerifyAuthHash(ctx, username, keys.AuthHash)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return keys, nil
}

func (s *Session) derive(password []byte) duress.DeriveFunc {
	return func(salt types.Salt) (*crypto.DerivedKeys, error) {
		return crypto.DeriveKeys(password, salt, s.opts.Params)
	}
}

// burn performs a throwaway derivation in place of a missing duress salt
// or an unknown user.
func (s *Session) burn(password []byte) {
	if keys, err := crypto.DeriveKeys(password, nil, s.opts.Params); err == nil {
		keys.Destroy()
	}
}

// Lock discards the key and vault. It is safe to call in any state.
//
// Locking during UNLOCKING does not interrupt the derivation; its result is
// thrown away when it completes.
func (s *Session) Lock(reason LockReason) {
	s.mu.Lock()
	keys, event, ok := s.lockLocked(reason)
	s.mu.Unlock()

	keys.Destroy()
	if ok {
		s.publish(event)
	}
}

// lockLocked performs the transition with s.mu held. The returned keys must
// be destroyed and the event published once the lock is released.
func (s *Session) lockLocked(reason LockReason) (*crypto.DerivedKeys, bus.EventType, bool) {
	switch s.state {
	case StateLocked:
		return nil, "", false
	case StateUnlocking:
		s.epoch++
		s.lockReason = reason
		return nil, "", false
	}

	keys := s.keys
	s.keys = nil
	s.vault = nil
	s.recovered = false
	s.stopTimer()
	s.epoch++
	s.state = StateLocked
	s.lockReason = reason
	s.hiddenAt = time.Time{}

	log.Info().Str("reason", string(reason)).Msg("session locked")

	event, ok := reason.broadcast()
	return keys, event, ok
}

func (s *Session) publish(t bus.EventType) {
	if s.opts.Bus == nil {
		return
	}
	err := s.opts.Bus.Publish(bus.Event{Type: t, Timestamp: s.opts.Clock.Now().UTC()})
	if err != nil {
		log.Warn().Err(err).Msg("failed to broadcast revocation")
	}
}

// Close locks the session without broadcasting and leaves the bus
func (s *Session) Close() {
	if s.opts.Bus != nil && s.busToken != "" {
		s.opts.Bus.Unsubscribe(s.busToken)
	}
	s.Lock(ReasonClosed)
}
