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
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"github.com/notapipeline/zkv/pkg/types"
)

// Domain separation contexts. Each is appended to the password before
// derivation so the outputs are independent of each other.
const (
	ContextVault = "zkv/vault-encryption/v1"
	ContextAuth  = "zkv/authentication/v1"
	ContextShare = "zkv/share/v1"
)

var ErrEmptyPassword = errors.New("password must not be empty")

// DerivedKeys is the result of running a password through DeriveKeys.
//
// EncryptionKey never leaves locked memory. AuthHash is a hex SHA-256 digest
// of an independent Argon2id output and is safe to send to the server.
type DerivedKeys struct {
	EncryptionKey *Key
	AuthHash      string
	Salt          types.Salt
}

// Destroy wipes the encryption key. Safe to call on nil.
func (d *DerivedKeys) Destroy() {
	if d == nil || d.EncryptionKey == nil {
		return
	}
	d.EncryptionKey.Destroy()
}

// DeriveKeys turns a password and salt into domain separated key material.
//
// If salt is nil a fresh random salt is generated. For identical password,
// salt and params the output is always the same. The password slice is not
// modified; callers own its lifetime.
func DeriveKeys(password []byte, salt types.Salt, params types.KDFParams) (*DerivedKeys, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var err error
	if salt == nil {
		if salt, err = newSalt(); err != nil {
			return nil, err
		}
	} else if len(salt) != types.SaltSize {
		return nil, types.InvalidSaltError{Length: len(salt)}
	} else {
		salt = append(types.Salt(nil), salt...)
	}

	var (
		vaultOut []byte = derive(password, salt, ContextVault, params)
		authOut  []byte = derive(password, salt, ContextAuth, params)
	)
	defer Wipe(authOut)

	digest := sha256.Sum256(authOut)
	authHash := hex.EncodeToString(digest[:])
	Wipe(digest[:])

	var key *Key
	if key, err = NewKey(vaultOut); err != nil {
		return nil, err
	}

	return &DerivedKeys{
		EncryptionKey: key,
		AuthHash:      authHash,
		Salt:          salt,
	}, nil
}

func derive(password, salt []byte, context string, p types.KDFParams) []byte {
	input := make([]byte, 0, len(password)+len(context))
	input = append(input, password...)
	input = append(input, context...)
	defer Wipe(input)
	return argon2IDKey(input, salt, p.Time, p.Memory, p.Parallelism, types.KeySize)
}

// Subkey expands a uniformly random seed into a key handle bound to info.
//
// The seed is expected to already be full entropy so only the expand step
// of HKDF is used.
func Subkey(seed []byte, info string) (*Key, error) {
	if len(seed) != types.KeySize {
		return nil, InvalidKeySizeError{Size: len(seed)}
	}
	var (
		out []byte    = make([]byte, types.KeySize)
		r   io.Reader = hkdfExpand(sha256.New, seed, []byte(info))
	)
	if _, err := io.ReadFull(r, out); err != nil {
		Wipe(out)
		return nil, err
	}
	return NewKey(out)
}

// RandomBytes returns n bytes from the system CSPRNG
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return nil, err
	}
	return b, nil
}

func newSalt() (types.Salt, error) {
	b, err := RandomBytes(types.SaltSize)
	return types.Salt(b), err
}
