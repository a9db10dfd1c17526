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
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/notapipeline/zkv/pkg/types"
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != types.KeySize {
		return nil, InvalidKeySizeError{Size: len(key)}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(key, plaintext []byte) (types.EncryptedBlob, error) {
	var b types.EncryptedBlob
	gcm, err := newGCM(key)
	if err != nil {
		return b, err
	}

	// Nonces are always random. Never derive them from the plaintext.
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(randReader, nonce); err != nil {
		return b, fmt.Errorf("encrypt: failed to generate nonce: %w", err)
	}

	b.Version = types.BlobVersionV1
	b.Nonce = nonce
	b.Ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return b, nil
}

func open(key []byte, b types.EncryptedBlob) ([]byte, error) {
	if b.Version != types.BlobVersionV1 {
		return nil, types.UnsupportedVersionError{Value: b.Version}
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(b.Nonce) != gcm.NonceSize() {
		return nil, types.MalformedBlobError{Reason: "invalid nonce length"}
	}
	if len(b.Ciphertext) < gcm.Overhead() {
		return nil, types.MalformedBlobError{Reason: "ciphertext too short"}
	}

	plaintext, err := gcm.Open(nil, b.Nonce, b.Ciphertext, nil)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return plaintext, nil
}
