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
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/notapipeline/zkv/pkg/transport"
	"github.com/notapipeline/zkv/pkg/types"
)

func registered(t *testing.T, m *Memory) types.Salt {
	salt, err := types.NewSalt()
	require.NoError(t, err)
	require.NoError(t, m.Register(context.Background(), types.RegisterRequest{
		Username: "alice",
		Salt:     salt,
		AuthHash: "real-hash",
		Vault:    "real-blob",
	}))
	return salt
}

func TestMemoryAccount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	salt := registered(t, m)

	_, err := m.FetchSalts(ctx, "bob")
	assert.ErrorIs(t, err, types.ErrUnknownUser)

	salts, err := m.FetchSalts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, salt, salts.Real)
	assert.True(t, salts.Duress.IsZero())

	assert.ErrorIs(t, m.Register(ctx, types.RegisterRequest{Username: "alice"}), ErrUserExists)

	ok, err := m.VerifyAuthHash(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.GetVault(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Enrolment must be authorised by the real digest
	duressSalt, _ := types.NewSalt()
	req := types.DuressRequest{
		Username:       "alice",
		AuthHash:       "nope",
		DuressSalt:     duressSalt,
		DuressAuthHash: "duress-hash",
		Decoy:          "decoy-blob",
	}
	assert.ErrorIs(t, m.EnrollDuress(ctx, req), ErrUnauthorized)
	req.AuthHash = "real-hash"
	require.NoError(t, m.EnrollDuress(ctx, req))

	ok, err = m.VerifyAuthHash(ctx, "alice", "duress-hash")
	require.NoError(t, err)
	assert.True(t, ok)

	blobs, err := m.GetVault(ctx, "alice", "duress-hash")
	require.NoError(t, err)
	assert.Equal(t, types.VaultBlobs{Real: "real-blob", Decoy: "decoy-blob"}, blobs)

	// Each identity may only write its own slot
	assert.ErrorIs(t, m.PutVault(ctx, "alice", "duress-hash", types.SlotReal, "x"), ErrUnauthorized)
	assert.ErrorIs(t, m.PutVault(ctx, "alice", "real-hash", types.SlotDecoy, "x"), ErrUnauthorized)
	require.NoError(t, m.PutVault(ctx, "alice", "duress-hash", types.SlotDecoy, "decoy-2"))

	blobs, _ = m.GetVault(ctx, "alice", "real-hash")
	assert.Equal(t, "decoy-2", blobs.Decoy)
	assert.Equal(t, "real-blob", blobs.Real)
}

func TestMemoryShares(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.Now = func() time.Time { return now }

	id, err := m.StoreShare(ctx, "cipher", time.Hour)
	require.NoError(t, err)

	payload, err := m.BurnShare(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cipher", payload)

	_, err = m.BurnShare(ctx, id)
	assert.ErrorIs(t, err, types.ErrShareAlreadyConsumed)

	id, err = m.StoreShare(ctx, "cipher", time.Hour)
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = m.BurnShare(ctx, id)
	assert.ErrorIs(t, err, types.ErrShareExpired)

	_, err = m.BurnShare(ctx, "unknown")
	assert.ErrorIs(t, err, types.ErrShareExpired)
}

func TestMemoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "offline.db")
	m, err := OpenMemory(path)
	require.NoError(t, err)
	salt := registered(t, m)

	ctx := context.Background()
	burned, err := m.StoreShare(ctx, "burned", time.Hour)
	require.NoError(t, err)
	_, err = m.BurnShare(ctx, burned)
	require.NoError(t, err)
	pending, err := m.StoreShare(ctx, "pending", time.Hour)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := OpenMemory(path)
	require.NoError(t, err)
	defer reopened.Close()

	salts, err := reopened.FetchSalts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, salt, salts.Real)

	_, err = reopened.BurnShare(ctx, burned)
	assert.ErrorIs(t, err, types.ErrShareAlreadyConsumed)
	payload, err := reopened.BurnShare(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, "pending", payload)
}

func TestMemoryFailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		change func(m *Memory, share string) error
		check  func(t *testing.T, m *Memory, share string)
	}{
		{
			name: "put vault",
			change: func(m *Memory, _ string) error {
				return m.PutVault(ctx, "alice", "real-hash", types.SlotReal, "new-blob")
			},
			check: func(t *testing.T, m *Memory, _ string) {
				blobs, err := m.GetVault(ctx, "alice", "real-hash")
				require.NoError(t, err)
				assert.Equal(t, "real-blob", blobs.Real)
			},
		},
		{
			name: "register",
			change: func(m *Memory, _ string) error {
				return m.Register(ctx, types.RegisterRequest{Username: "bob", AuthHash: "bob-hash"})
			},
			check: func(t *testing.T, m *Memory, _ string) {
				_, err := m.FetchSalts(ctx, "bob")
				assert.ErrorIs(t, err, types.ErrUnknownUser)
			},
		},
		{
			name: "enroll duress",
			change: func(m *Memory, _ string) error {
				salt, _ := types.NewSalt()
				return m.EnrollDuress(ctx, types.DuressRequest{
					Username:       "alice",
					AuthHash:       "real-hash",
					DuressSalt:     salt,
					DuressAuthHash: "duress-hash",
					Decoy:          "decoy-blob",
				})
			},
			check: func(t *testing.T, m *Memory, _ string) {
				salts, err := m.FetchSalts(ctx, "alice")
				require.NoError(t, err)
				assert.True(t, salts.Duress.IsZero())
				ok, err := m.VerifyAuthHash(ctx, "alice", "duress-hash")
				require.NoError(t, err)
				assert.False(t, ok)
			},
		},
		{
			name: "store share",
			change: func(m *Memory, _ string) error {
				_, err := m.StoreShare(ctx, "other", time.Hour)
				return err
			},
			check: func(t *testing.T, m *Memory, share string) {
				assert.Len(t, m.state.Shares, 1)
				assert.Contains(t, m.state.Shares, share)
			},
		},
		{
			name: "burn share",
			change: func(m *Memory, share string) error {
				_, err := m.BurnShare(ctx, share)
				return err
			},
			check: func(t *testing.T, m *Memory, share string) {
				assert.Contains(t, m.state.Shares, share)
				assert.Empty(t, m.state.Burned)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, err := OpenMemory(filepath.Join(t.TempDir(), "offline.db"))
			require.NoError(t, err)
			registered(t, m)
			share, err := m.StoreShare(ctx, "cipher", time.Hour)
			require.NoError(t, err)

			// Every later write fails while the store still believes it
			// is backed by a database.
			require.NoError(t, m.db.Close())

			assert.ErrorIs(t, test.change(m, share), bbolt.ErrDatabaseNotOpen)
			test.check(t, m, share)
		})
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		code     int
		call     func(h *HTTP) error
		expected error
	}{
		{
			name: "unknown user",
			code: 404,
			call: func(h *HTTP) error {
				_, err := h.FetchSalts(ctx, "bob")
				return err
			},
			expected: types.ErrUnknownUser,
		},
		{
			name: "share consumed",
			code: 410,
			call: func(h *HTTP) error {
				_, err := h.BurnShare(ctx, "id")
				return err
			},
			expected: types.ErrShareAlreadyConsumed,
		},
		{
			name: "share expired",
			code: 404,
			call: func(h *HTTP) error {
				_, err := h.BurnShare(ctx, "id")
				return err
			},
			expected: types.ErrShareExpired,
		},
		{
			name: "vault unauthorised",
			code: 401,
			call: func(h *HTTP) error {
				_, err := h.GetVault(ctx, "alice", "hash")
				return err
			},
			expected: ErrUnauthorized,
		},
		{
			name: "register conflict",
			code: 409,
			call: func(h *HTTP) error {
				return h.Register(ctx, types.RegisterRequest{Username: "alice"})
			},
			expected: ErrUserExists,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := &HTTP{
				Server: "https://vault.example",
				Client: &transport.MockHttpClient{
					Responses: []transport.MockHttpResponse{{Code: test.code}},
				},
			}
			assert.ErrorIs(t, test.call(h), test.expected)
		})
	}
}

func TestHTTPRequests(t *testing.T) {
	ctx := context.Background()
	salt, _ := types.NewSalt()
	saltBody, _ := json.Marshal(types.Salts{Real: salt})

	mock := &transport.MockHttpClient{
		Responses: []transport.MockHttpResponse{
			{Code: 200, Body: saltBody},
			{Code: 200, Body: []byte(`{"vault":"r","decoy":"d"}`)},
			{Code: 200, Body: []byte(`{"statuscode":200,"message":"ok"}`)},
			{Code: 200, Body: []byte(`{"encryptedPayload":"cipher"}`)},
		},
	}
	h := &HTTP{Server: "https://vault.example", Client: mock}

	salts, err := h.FetchSalts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, salt, salts.Real)

	blobs, err := h.GetVault(ctx, "alice", "digest")
	require.NoError(t, err)
	assert.Equal(t, types.VaultBlobs{Real: "r", Decoy: "d"}, blobs)

	require.NoError(t, h.PutVault(ctx, "alice", "digest", types.SlotDecoy, "blob"))

	payload, err := h.BurnShare(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "cipher", payload)

	require.Len(t, mock.Requests, 4)
	assert.Equal(t, "https://vault.example/api/v1/salts?username=alice", mock.Requests[0].URL)
	assert.Equal(t, "", mock.Requests[0].Token)
	assert.Equal(t, "digest", mock.Requests[1].Token)
	assert.Equal(t, "PUT", mock.Requests[2].Method)
	assert.JSONEq(t, `{"username":"alice","authHash":"digest","slot":"decoy","vault":"blob"}`, string(mock.Requests[2].Body))
	assert.Equal(t, "https://vault.example/api/v1/shares/abc/burn", mock.Requests[3].URL)
}
