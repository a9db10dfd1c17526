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
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/notapipeline/zkv/pkg/types"
)

type InvalidKeySizeError struct {
	Size int
}

func (e InvalidKeySizeError) Error() string {
	return fmt.Sprintf("invalid key size: expected %d bytes, got %d", types.KeySize, e.Size)
}

// Key is an opaque AES-256 key handle.
//
// The key bytes live in a frozen memguard.LockedBuffer and are never handed
// out. The only things a holder can do with a Key are seal, open and destroy.
// Destroy blocks until any in flight Seal or Open has returned.
type Key struct {
	mu  sync.RWMutex
	buf *memguard.LockedBuffer
}

// NewKey moves b into locked memory. b is wiped whether or not this
// succeeds.
func NewKey(b []byte) (*Key, error) {
	if len(b) != types.KeySize {
		Wipe(b)
		return nil, InvalidKeySizeError{Size: len(b)}
	}
	buf := memguard.NewBufferFromBytes(b)
	buf.Freeze()
	return &Key{buf: buf}, nil
}

// NewRandomKey generates a key directly inside locked memory
func NewRandomKey() *Key {
	buf := memguard.NewBufferRandom(types.KeySize)
	buf.Freeze()
	return &Key{buf: buf}
}

// Alive reports whether the key can still be used
func (k *Key) Alive() bool {
	if k == nil {
		return false
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.buf != nil && k.buf.IsAlive()
}

// Destroy wipes and releases the key. Further use returns ErrKeyDestroyed.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.buf != nil {
		k.buf.Destroy()
		k.buf = nil
	}
}

// Seal encrypts plaintext under a fresh nonce
func (k *Key) Seal(plaintext []byte) (blob types.EncryptedBlob, err error) {
	err = k.use(func(key []byte) (e error) {
		blob, e = seal(key, plaintext)
		return
	})
	return
}

// Open authenticates and decrypts blob. Any tag mismatch is reported as
// types.ErrDecryptionFailed.
func (k *Key) Open(blob types.EncryptedBlob) (plaintext []byte, err error) {
	err = k.use(func(key []byte) (e error) {
		plaintext, e = open(key, blob)
		return
	})
	return
}

func (k *Key) use(fn func(key []byte) error) error {
	if k == nil {
		return types.ErrKeyDestroyed
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.buf == nil || !k.buf.IsAlive() {
		return types.ErrKeyDestroyed
	}
	return fn(k.buf.Bytes())
}
