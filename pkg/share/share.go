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

// Package share implements one time secret links.
//
// A share key is 32 random bytes and is never derived from a password. The
// server only ever sees the ciphertext and an id; the key travels in the
// fragment of the link, which browsers and HTTP clients do not send.
package share

import (
	"encoding/json"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
)

// Share is a freshly sealed payload and the key that opens it
type Share struct {
	EncryptedPayload string
	Key              []byte
}

// Wipe clears the key bytes
func (s *Share) Wipe() {
	if s != nil {
		crypto.Wipe(s.Key)
	}
}

// CreateShare seals payload as JSON under a new random key
func CreateShare(payload any) (*Share, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(plaintext)

	seed, err := crypto.RandomBytes(types.KeySize)
	if err != nil {
		return nil, err
	}

	key, err := crypto.Subkey(seed, crypto.ContextShare)
	if err != nil {
		crypto.Wipe(seed)
		return nil, err
	}
	defer key.Destroy()

	blob, err := key.Seal(plaintext)
	if err != nil {
		crypto.Wipe(seed)
		return nil, err
	}

	return &Share{
		EncryptedPayload: blob.String(),
		Key:              seed,
	}, nil
}

// OpenShare decrypts encryptedPayload into out. key is wiped before
// returning, whatever the outcome.
func OpenShare(encryptedPayload string, key []byte, out any) error {
	defer crypto.Wipe(key)

	blob, err := types.ParseBlob(encryptedPayload)
	if err != nil {
		return err
	}

	subkey, err := crypto.Subkey(key, crypto.ContextShare)
	if err != nil {
		return err
	}
	defer subkey.Destroy()

	plaintext, err := subkey.Open(blob)
	if err != nil {
		return err
	}
	defer crypto.Wipe(plaintext)

	if err = json.Unmarshal(plaintext, out); err != nil {
		return types.MalformedBlobError{Reason: "share payload is not JSON", Err: err}
	}
	return nil
}
