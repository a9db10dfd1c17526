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
package duress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
	"github.com/notapipeline/zkv/pkg/vault"
)

var fast types.KDFParams = types.KDFParams{
	Memory:      1024,
	Time:        1,
	Parallelism: 1,
}

var now time.Time = time.Date(2023, 11, 5, 10, 0, 0, 0, time.UTC)

// sealed returns a salt and a vault blob for password. The vault holds a
// single entry with the given title.
func sealed(t *testing.T, password, title string) (types.Salt, string) {
	t.Helper()
	keys, err := crypto.DeriveKeys([]byte(password), nil, fast)
	require.NoError(t, err)
	defer keys.Destroy()

	v := types.NewVaultData(now)
	require.NoError(t, vault.AddEntry(types.VaultEntry{Title: title}, now)(v))
	blob, err := vault.EncryptVault(v, keys.EncryptionKey)
	require.NoError(t, err)
	return keys.Salt, blob
}

func TestResolve(t *testing.T) {
	realSalt, realBlob := sealed(t, "Tr0ub4dor&3", "real entry")
	duressSalt, decoyBlob := sealed(t, "decoy123", "fake entry")

	in := Input{
		RealSalt:   realSalt,
		RealBlob:   realBlob,
		DuressSalt: duressSalt,
		DecoyBlob:  decoyBlob,
	}

	tests := []struct {
		name     string
		password string
		isReal   bool
		title    string
		err      error
	}{
		{"real password", "Tr0ub4dor&3", true, "real entry", nil},
		{"duress password", "decoy123", false, "fake entry", nil},
		{"wrong password", "guess", false, "", types.ErrInvalidPassword},
	}

	r := New(fast)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := r.Resolve([]byte(test.password), in)
			if test.err != nil {
				assert.Nil(t, res)
				assert.Equal(t, test.err, err)
				return
			}
			require.NoError(t, err)
			defer res.Keys.Destroy()
			assert.Equal(t, test.isReal, res.IsReal)
			require.Len(t, res.Vault.Entries, 1)
			assert.Equal(t, test.title, res.Vault.Entries[0].Title)
			assert.True(t, res.Keys.EncryptionKey.Alive())
		})
	}
}

func TestResolve_SamePasswordBothSalts(t *testing.T) {
	realSalt, realBlob := sealed(t, "same", "real entry")
	duressSalt, decoyBlob := sealed(t, "same", "fake entry")

	var calls []types.Salt
	derive := func(salt types.Salt) (*crypto.DerivedKeys, error) {
		calls = append(calls, salt)
		return crypto.DeriveKeys([]byte("same"), salt, fast)
	}

	for i := 0; i < 3; i++ {
		calls = nil
		res, err := New(fast).ResolveWith(derive, Input{realSalt, realBlob, duressSalt, decoyBlob})
		require.NoError(t, err)
		assert.True(t, res.IsReal, "real vault must win")
		assert.Equal(t, "real entry", res.Vault.Entries[0].Title)
		assert.Equal(t, []types.Salt{realSalt}, calls, "decoy must not be tried")
		res.Keys.Destroy()
	}
}

func TestResolve_EmptyBlobs(t *testing.T) {
	realSalt, realBlob := sealed(t, "Tr0ub4dor&3", "real entry")
	duressSalt, _ := sealed(t, "decoy123", "fake entry")

	r := New(fast)

	_, err := r.Resolve([]byte("Tr0ub4dor&3"), Input{RealSalt: realSalt})
	assert.Equal(t, types.ErrInvalidPassword, err)

	_, err = r.Resolve([]byte("decoy123"), Input{
		RealSalt: realSalt, RealBlob: realBlob, DuressSalt: duressSalt,
	})
	assert.Equal(t, types.ErrInvalidPassword, err)
}

func TestResolve_ConstantEffort(t *testing.T) {
	realSalt, realBlob := sealed(t, "Tr0ub4dor&3", "real entry")
	duressSalt, decoyBlob := sealed(t, "decoy123", "fake entry")

	count := func(in Input) int {
		var n int
		_, err := New(fast).ResolveWith(func(salt types.Salt) (*crypto.DerivedKeys, error) {
			n++
			return crypto.DeriveKeys([]byte("wrong"), salt, fast)
		}, in)
		assert.Equal(t, types.ErrInvalidPassword, err)
		return n
	}

	withDuress := count(Input{realSalt, realBlob, duressSalt, decoyBlob})
	withoutDuress := count(Input{RealSalt: realSalt, RealBlob: realBlob})
	assert.Equal(t, 2, withDuress)
	assert.Equal(t, withDuress, withoutDuress)
}

func TestResolve_LosingKeysDestroyed(t *testing.T) {
	realSalt, realBlob := sealed(t, "Tr0ub4dor&3", "real entry")
	duressSalt, decoyBlob := sealed(t, "decoy123", "fake entry")

	var derived []*crypto.DerivedKeys
	res, err := New(fast).ResolveWith(func(salt types.Salt) (*crypto.DerivedKeys, error) {
		k, err := crypto.DeriveKeys([]byte("decoy123"), salt, fast)
		derived = append(derived, k)
		return k, err
	}, Input{realSalt, realBlob, duressSalt, decoyBlob})
	require.NoError(t, err)
	defer res.Keys.Destroy()

	require.Len(t, derived, 2)
	assert.False(t, derived[0].EncryptionKey.Alive(), "real attempt key must be destroyed")
	assert.True(t, derived[1].EncryptionKey.Alive())
	assert.Same(t, derived[1], res.Keys)
}

func TestMemo(t *testing.T) {
	salt, _ := types.NewSalt()
	other, _ := types.NewSalt()
	var n int
	m := NewMemo(func(s types.Salt) (*crypto.DerivedKeys, error) {
		n++
		return crypto.DeriveKeys([]byte("password"), s, fast)
	})

	a, err := m.Derive(salt)
	require.NoError(t, err)
	b, err := m.Derive(salt)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, n)

	c, err := m.Derive(other)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m.Release(a)
	assert.True(t, a.EncryptionKey.Alive())
	assert.False(t, c.EncryptionKey.Alive())
	a.Destroy()
}
