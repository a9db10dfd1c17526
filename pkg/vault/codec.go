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
package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
)

var ErrNilVault = errors.New("vault must not be nil")

// EncryptVault serialises the vault and seals it as a single blob.
//
// The returned string is the transport form of a types.EncryptedBlob.
func EncryptVault(v *types.VaultData, key *crypto.Key) (string, error) {
	if v == nil {
		return "", ErrNilVault
	}

	var (
		plain []byte
		blob  types.EncryptedBlob
		err   error
	)
	if plain, err = json.Marshal(v); err != nil {
		return "", fmt.Errorf("encrypt vault: %w", err)
	}
	defer crypto.Wipe(plain)

	if blob, err = key.Seal(plain); err != nil {
		return "", err
	}
	return blob.String(), nil
}

// DecryptVault parses, authenticates and decodes a vault blob.
//
// Errors:
//
//	types.ErrMalformedBlob / types.UnsupportedVersionError - the frame is unusable
//	types.ErrDecryptionFailed - the tag did not verify under key
//	types.ErrCorruptedVault - the tag verified but the plaintext is not a vault
//
// A partially decoded vault is never returned.
func DecryptVault(s string, key *crypto.Key) (*types.VaultData, error) {
	var (
		blob  types.EncryptedBlob
		plain []byte
		err   error
	)

	if blob, err = types.ParseBlob(s); err != nil {
		return nil, err
	}

	if plain, err = key.Open(blob); err != nil {
		return nil, err
	}
	defer crypto.Wipe(plain)

	var v types.VaultData
	if err = json.Unmarshal(plain, &v); err != nil {
		// The decoder error can quote plaintext so it is not wrapped.
		return nil, fmt.Errorf("%w: plaintext is not a vault document", types.ErrCorruptedVault)
	}
	return &v, nil
}

// IsUnreadable reports whether err means a blob could not be turned into a
// vault at all, as opposed to a key or session problem.
func IsUnreadable(err error) bool {
	var uv types.UnsupportedVersionError
	return errors.Is(err, types.ErrDecryptionFailed) ||
		errors.Is(err, types.ErrCorruptedVault) ||
		errors.Is(err, types.ErrMalformedBlob) ||
		errors.As(err, &uv)
}
