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
package remote

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/notapipeline/zkv/pkg/types"
)

var (
	ErrUnauthorized = errors.New("authentication digest not accepted")
	ErrUserExists   = errors.New("user already exists")
)

const DefaultShareTTL = 24 * time.Hour

type account struct {
	Salts          types.Salts      `json:"salts"`
	AuthHash       string           `json:"authHash"`
	DuressAuthHash string           `json:"duressAuthHash,omitempty"`
	Blobs          types.VaultBlobs `json:"blobs"`
}

type storedShare struct {
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type memoryState struct {
	Users  map[string]*account     `json:"users"`
	Shares map[string]*storedShare `json:"shares"`
	Burned map[string]time.Time    `json:"burned"`
}

// Memory is an in-process stand in for the vault server. Like the real
// server it only ever holds salts, authentication digests and ciphertext.
//
// When created with OpenMemory every change is written through to a bolt
// database so the CLI can run without a server.
type Memory struct {
	mu    sync.Mutex
	state memoryState
	db    *bbolt.DB

	// Now is used for share expiry
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		state: memoryState{
			Users:  make(map[string]*account),
			Shares: make(map[string]*storedShare),
			Burned: make(map[string]time.Time),
		},
		Now: time.Now,
	}
}

func equal(a, b string) bool {
	return a != "" && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (m *Memory) FetchSalts(_ context.Context, username string) (types.Salts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.Users[username]
	if !ok {
		return types.Salts{}, types.ErrUnknownUser
	}
	return a.Salts, nil
}

func (m *Memory) VerifyAuthHash(_ context.Context, username, authHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.Users[username]
	if !ok {
		return false, nil
	}
	return equal(authHash, a.AuthHash) || equal(authHash, a.DuressAuthHash), nil
}

// GetVault returns both blobs to either identity so the response does not
// reveal which one asked.
func (m *Memory) GetVault(_ context.Context, username, authHash string) (types.VaultBlobs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.Users[username]
	if !ok || !(equal(authHash, a.AuthHash) || equal(authHash, a.DuressAuthHash)) {
		return types.VaultBlobs{}, ErrUnauthorized
	}
	return a.Blobs, nil
}

func (m *Memory) PutVault(_ context.Context, username, authHash string, slot types.Slot, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.Users[username]
	if !ok {
		return ErrUnauthorized
	}
	updated := *a
	switch slot {
	case types.SlotReal:
		if !equal(authHash, a.AuthHash) {
			return ErrUnauthorized
		}
		updated.Blobs.Real = blob
	case types.SlotDecoy:
		if !equal(authHash, a.DuressAuthHash) {
			return ErrUnauthorized
		}
		updated.Blobs.Decoy = blob
	default:
		return fmt.Errorf("unknown slot %d", slot)
	}
	return m.putUser(username, &updated)
}

// putUser persists a and only then makes it visible. Called with m.mu held.
func (m *Memory) putUser(username string, a *account) error {
	if err := m.write(record{usersBucket, username, a}); err != nil {
		return err
	}
	m.state.Users[username] = a
	return nil
}

func (m *Memory) Register(_ context.Context, req types.RegisterRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.Users[req.Username]; ok {
		return ErrUserExists
	}
	a := &account{
		Salts:    types.Salts{Real: req.Salt},
		AuthHash: req.AuthHash,
		Blobs:    types.VaultBlobs{Real: req.Vault},
	}
	return m.putUser(req.Username, a)
}

func (m *Memory) EnrollDuress(_ context.Context, req types.DuressRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.Users[req.Username]
	if !ok || !equal(req.AuthHash, a.AuthHash) {
		return ErrUnauthorized
	}
	updated := *a
	updated.Salts.Duress = req.DuressSalt
	updated.DuressAuthHash = req.DuressAuthHash
	updated.Blobs.Decoy = req.Decoy
	return m.putUser(req.Username, &updated)
}

func (m *Memory) StoreShare(_ context.Context, encryptedPayload string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultShareTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	s := &storedShare{
		Payload:   encryptedPayload,
		ExpiresAt: m.Now().Add(ttl),
	}
	if err := m.write(record{sharesBucket, id, s}); err != nil {
		return "", err
	}
	m.state.Shares[id] = s
	return id, nil
}

// BurnShare returns the ciphertext and deletes it in the same step
func (m *Memory) BurnShare(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.Burned[id]; ok {
		return "", types.ErrShareAlreadyConsumed
	}
	s, ok := m.state.Shares[id]
	if !ok {
		return "", types.ErrShareExpired
	}

	now := m.Now()
	if !now.Before(s.ExpiresAt) {
		log.Debug().Str("id", id).Msg("share expired before retrieval")
		err := m.write(record{sharesBucket, id, nil})
		if err == nil {
			delete(m.state.Shares, id)
		}
		return "", errors.Join(types.ErrShareExpired, err)
	}
	if err := m.write(record{sharesBucket, id, nil}, record{burnedBucket, id, now}); err != nil {
		return "", err
	}
	delete(m.state.Shares, id)
	m.state.Burned[id] = now
	return s.Payload, nil
}
