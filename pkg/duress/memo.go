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
	"sync"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
)

// Memo caches derivations per salt so the unlock pipeline runs Argon2id at
// most once per salt. Every key it hands out is owned by the Memo until
// Release is called.
type Memo struct {
	mu     sync.Mutex
	derive DeriveFunc
	keys   map[string]*crypto.DerivedKeys
}

func NewMemo(derive DeriveFunc) *Memo {
	return &Memo{
		derive: derive,
		keys:   make(map[string]*crypto.DerivedKeys),
	}
}

// Derive returns cached keys for salt or derives them
func (m *Memo) Derive(salt types.Salt) (*crypto.DerivedKeys, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[string(salt)]; ok && k.EncryptionKey.Alive() {
		return k, nil
	}
	k, err := m.derive(salt)
	if err != nil {
		return nil, err
	}
	m.keys[string(salt)] = k
	return k, nil
}

// Release destroys every cached key except keep
func (m *Memo) Release(keep *crypto.DerivedKeys) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s, k := range m.keys {
		if k != keep {
			k.Destroy()
		}
		delete(m.keys, s)
	}
}
