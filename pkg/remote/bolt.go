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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	usersBucket  = []byte("users")
	sharesBucket = []byte("shares")
	burnedBucket = []byte("burned")
)

// record is one key written by a change. A nil value deletes the key.
type record struct {
	bucket []byte
	key    string
	value  any
}

// OpenMemory loads state from the bolt database at path, creating it if
// needed. The database stays open until Close.
func OpenMemory(path string) (*Memory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("offline store %s: %w", path, err)
	}

	m := NewMemory()
	m.db = db
	if err = m.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("offline store %s: %w", path, err)
	}
	return m, nil
}

func (m *Memory) load() error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, sharesBucket, burnedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		if err := tx.Bucket(usersBucket).ForEach(func(k, v []byte) error {
			var a account
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("user %s: %w", k, err)
			}
			m.state.Users[string(k)] = &a
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(sharesBucket).ForEach(func(k, v []byte) error {
			var s storedShare
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("share %s: %w", k, err)
			}
			m.state.Shares[string(k)] = &s
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(burnedBucket).ForEach(func(k, v []byte) error {
			var at time.Time
			if err := json.Unmarshal(v, &at); err != nil {
				return fmt.Errorf("burned share %s: %w", k, err)
			}
			m.state.Burned[string(k)] = at
			return nil
		})
	})
}

// write stores records in a single transaction. Called with m.mu held.
func (m *Memory) write(records ...record) error {
	if m.db == nil {
		return nil
	}
	return m.db.Update(func(tx *bbolt.Tx) error {
		for _, r := range records {
			b := tx.Bucket(r.bucket)
			if r.value == nil {
				if err := b.Delete([]byte(r.key)); err != nil {
					return err
				}
				continue
			}
			v, err := json.Marshal(r.value)
			if err != nil {
				return err
			}
			if err = b.Put([]byte(r.key), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the database behind an OpenMemory store
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
