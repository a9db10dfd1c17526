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
package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapipeline/zkv/pkg/types"
)

var fast types.KDFParams = types.KDFParams{
	Memory:      1024,
	Time:        1,
	Parallelism: 1,
}

func keyBytes(t *testing.T, k *Key) (out []byte) {
	require.NoError(t, k.use(func(key []byte) error {
		out = append(out, key...)
		return nil
	}))
	return
}

func TestDeriveKeys_Deterministic(t *testing.T) {
	salt, err := types.NewSalt()
	require.NoError(t, err)

	a, err := DeriveKeys([]byte("Tr0ub4dor&3"), salt, fast)
	require.NoError(t, err)
	defer a.Destroy()

	b, err := DeriveKeys([]byte("Tr0ub4dor&3"), salt, fast)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Equal(t, a.AuthHash, b.AuthHash)
	assert.Equal(t, keyBytes(t, a.EncryptionKey), keyBytes(t, b.EncryptionKey))
	assert.Len(t, a.AuthHash, 64)
	assert.Equal(t, salt, a.Salt)

	blob, err := a.EncryptionKey.Seal([]byte("hello world"))
	require.NoError(t, err)
	plain, err := b.EncryptionKey.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(plain))
}

func TestDeriveKeys_Inputs(t *testing.T) {
	salt, _ := types.NewSalt()
	other, _ := types.NewSalt()

	base, err := DeriveKeys([]byte("password"), salt, fast)
	require.NoError(t, err)
	defer base.Destroy()

	tests := []struct {
		name     string
		password string
		salt     types.Salt
		params   types.KDFParams
	}{
		{"different password", "Password", salt, fast},
		{"different salt", "password", other, fast},
		{"different cost", "password", salt, types.KDFParams{Memory: 1024, Time: 2, Parallelism: 1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			k, err := DeriveKeys([]byte(test.password), test.salt, test.params)
			require.NoError(t, err)
			defer k.Destroy()
			assert.NotEqual(t, base.AuthHash, k.AuthHash)
			assert.NotEqual(t, keyBytes(t, base.EncryptionKey), keyBytes(t, k.EncryptionKey))
		})
	}
}

func TestDeriveKeys_GeneratesSalt(t *testing.T) {
	a, err := DeriveKeys([]byte("password"), nil, fast)
	require.NoError(t, err)
	defer a.Destroy()
	b, err := DeriveKeys([]byte("password"), nil, fast)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Len(t, a.Salt, types.SaltSize)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.AuthHash, b.AuthHash)
}

func TestDeriveKeys_Errors(t *testing.T) {
	tests := []struct {
		name     string
		password []byte
		salt     types.Salt
		params   types.KDFParams
		expected error
	}{
		{
			name:     "empty password",
			password: nil,
			params:   fast,
			expected: ErrEmptyPassword,
		},
		{
			name:     "short salt",
			password: []byte("password"),
			salt:     types.Salt("short"),
			params:   fast,
			expected: types.InvalidSaltError{Length: 5},
		},
		{
			name:     "invalid params",
			password: []byte("password"),
			params:   types.KDFParams{},
			expected: types.InvalidKDFParamsError{Field: "time", Value: uint32(0)},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			k, err := DeriveKeys(test.password, test.salt, test.params)
			assert.Nil(t, k)
			assert.Equal(t, test.expected, err)
		})
	}
}

func TestDeriveKeys_DomainSeparation(t *testing.T) {
	var (
		inputs [][]byte
		mu     sync.Mutex
	)
	orig := argon2IDKey
	defer func() { argon2IDKey = orig }()
	argon2IDKey = func(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
		mu.Lock()
		inputs = append(inputs, append([]byte(nil), password...))
		mu.Unlock()
		return orig(password, salt, time, memory, threads, keyLen)
	}

	password := []byte("password")
	k, err := DeriveKeys(password, nil, fast)
	require.NoError(t, err)
	defer k.Destroy()

	require.Len(t, inputs, 2)
	assert.Equal(t, "password"+ContextVault, string(inputs[0]))
	assert.Equal(t, "password"+ContextAuth, string(inputs[1]))
	assert.Equal(t, "password", string(password), "password must not be modified")
}

// The digest is SHA-256 over the auth context output. Neither the key nor
// any simple transform of it may equal the digest.
func TestDeriveKeys_KeyIndependence(t *testing.T) {
	salt, _ := types.NewSalt()
	k, err := DeriveKeys([]byte("Tr0ub4dor&3"), salt, fast)
	require.NoError(t, err)
	defer k.Destroy()

	key := keyBytes(t, k.EncryptionKey)
	keyHash := sha256.Sum256(key)

	assert.NotEqual(t, hex.EncodeToString(key), k.AuthHash)
	assert.NotEqual(t, hex.EncodeToString(keyHash[:]), k.AuthHash)

	authOut := authOutput(t, "Tr0ub4dor&3"+ContextAuth, salt)
	assert.NotEqual(t, key, authOut)
	authHash := sha256.Sum256(authOut)
	assert.Equal(t, hex.EncodeToString(authHash[:]), k.AuthHash)
}

func authOutput(t *testing.T, input string, salt types.Salt) []byte {
	t.Helper()
	return argon2IDKey([]byte(input), salt, fast.Time, fast.Memory, fast.Parallelism, types.KeySize)
}

func TestKey_SealOpen(t *testing.T) {
	k := NewRandomKey()
	defer k.Destroy()

	a, err := k.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := k.Seal([]byte("same"))
	require.NoError(t, err)

	assert.Equal(t, types.BlobVersionV1, a.Version)
	assert.Len(t, a.Nonce, types.NonceSize)
	assert.NotEqual(t, a.Nonce, b.Nonce, "nonce must be fresh per call")
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)

	for _, blob := range []types.EncryptedBlob{a, b} {
		plain, err := k.Open(blob)
		require.NoError(t, err)
		assert.Equal(t, "same", string(plain))
	}
}

func TestKey_Tamper(t *testing.T) {
	k := NewRandomKey()
	defer k.Destroy()

	blob, err := k.Seal([]byte("tamper with me"))
	require.NoError(t, err)

	for i := range blob.Nonce {
		for bit := 0; bit < 8; bit++ {
			tampered := types.EncryptedBlob{
				Version:    blob.Version,
				Nonce:      append([]byte(nil), blob.Nonce...),
				Ciphertext: blob.Ciphertext,
			}
			tampered.Nonce[i] ^= 1 << bit
			_, err := k.Open(tampered)
			assert.ErrorIs(t, err, types.ErrDecryptionFailed)
		}
	}

	for i := range blob.Ciphertext {
		tampered := types.EncryptedBlob{
			Version:    blob.Version,
			Nonce:      blob.Nonce,
			Ciphertext: append([]byte(nil), blob.Ciphertext...),
		}
		tampered.Ciphertext[i] ^= 0x80
		_, err := k.Open(tampered)
		assert.ErrorIs(t, err, types.ErrDecryptionFailed)
	}
}

func TestKey_WrongKey(t *testing.T) {
	a := NewRandomKey()
	defer a.Destroy()
	b := NewRandomKey()
	defer b.Destroy()

	blob, err := a.Seal([]byte("secret"))
	require.NoError(t, err)
	_, err = b.Open(blob)
	assert.ErrorIs(t, err, types.ErrDecryptionFailed)
}

func TestKey_OpenRejectsVersion(t *testing.T) {
	k := NewRandomKey()
	defer k.Destroy()

	blob, err := k.Seal([]byte("secret"))
	require.NoError(t, err)
	blob.Version = "v0"
	_, err = k.Open(blob)
	assert.Equal(t, types.UnsupportedVersionError{Value: "v0"}, err)
}

func TestKey_Destroy(t *testing.T) {
	k := NewRandomKey()
	blob, err := k.Seal([]byte("secret"))
	require.NoError(t, err)

	assert.True(t, k.Alive())
	k.Destroy()
	assert.False(t, k.Alive())
	k.Destroy()

	_, err = k.Seal([]byte("secret"))
	assert.ErrorIs(t, err, types.ErrKeyDestroyed)
	_, err = k.Open(blob)
	assert.ErrorIs(t, err, types.ErrKeyDestroyed)

	var nilKey *Key
	assert.False(t, nilKey.Alive())
	_, err = nilKey.Seal(nil)
	assert.ErrorIs(t, err, types.ErrKeyDestroyed)
}

func TestNewKey(t *testing.T) {
	src := bytes.Repeat([]byte{0xaa}, types.KeySize)
	k, err := NewKey(src)
	require.NoError(t, err)
	defer k.Destroy()
	assert.Equal(t, make([]byte, types.KeySize), src, "source must be wiped")

	short := []byte("short")
	_, err = NewKey(short)
	assert.Equal(t, InvalidKeySizeError{Size: 5}, err)
	assert.Equal(t, make([]byte, 5), short)
}

func TestSubkey(t *testing.T) {
	seed := bytes.Repeat([]byte{1}, types.KeySize)

	a, err := Subkey(seed, ContextShare)
	require.NoError(t, err)
	defer a.Destroy()
	b, err := Subkey(seed, ContextShare)
	require.NoError(t, err)
	defer b.Destroy()
	c, err := Subkey(seed, "other")
	require.NoError(t, err)
	defer c.Destroy()

	assert.Equal(t, keyBytes(t, a), keyBytes(t, b))
	assert.NotEqual(t, keyBytes(t, a), keyBytes(t, c))
	assert.NotEqual(t, seed, keyBytes(t, a))

	_, err = Subkey([]byte("short"), ContextShare)
	assert.Equal(t, InvalidKeySizeError{Size: 5}, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestSeal_NonceFailure(t *testing.T) {
	o := randReader
	defer func() { randReader = o }()
	randReader = failingReader{}

	k := NewRandomKey()
	defer k.Destroy()
	_, err := k.Seal([]byte("secret"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "entropy exhausted"))

	_, err = DeriveKeys([]byte("password"), nil, fast)
	assert.Error(t, err)
}

func TestWipe(t *testing.T) {
	a := []byte("secret")
	b := []byte("another")
	WipeAll(a, b, nil)
	assert.Equal(t, make([]byte, 6), a)
	assert.Equal(t, make([]byte, 7), b)
}
