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
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
)

// EncryptFields seals each named field independently, each with its own
// nonce. Used for the server held per entry ciphertexts.
func EncryptFields(fields map[string]string, key *crypto.Key) (map[string]string, error) {
	var out map[string]string = make(map[string]string, len(fields))
	for name, value := range fields {
		plain := []byte(value)
		blob, err := key.Seal(plain)
		crypto.Wipe(plain)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %q: %w", name, err)
		}
		out[name] = blob.String()
	}
	return out, nil
}

// DecryptFields opens each field concurrently.
//
// A field that fails to decrypt is returned as nil and does not stop its
// siblings. Failures are logged by field name only.
func DecryptFields(fields map[string]string, key *crypto.Key) map[string]*string {
	var (
		out map[string]*string = make(map[string]*string, len(fields))
		mu  sync.Mutex
		wg  sync.WaitGroup
	)

	for name, value := range fields {
		wg.Add(1)
		go func(name, value string) {
			defer wg.Done()
			plain, err := decryptField(value, key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Str("field", name).Str("kind", ErrorKind(err)).Msg("field decryption failed")
				out[name] = nil
				return
			}
			out[name] = plain
		}(name, value)
	}
	wg.Wait()
	return out
}

func decryptField(value string, key *crypto.Key) (*string, error) {
	blob, err := types.ParseBlob(value)
	if err != nil {
		return nil, err
	}
	plain, err := key.Open(blob)
	if err != nil {
		return nil, err
	}
	s := string(plain)
	crypto.Wipe(plain)
	return &s, nil
}

// ErrorKind gives a log safe description of a crypto failure
func ErrorKind(err error) string {
	var uv types.UnsupportedVersionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, types.ErrCorruptedVault):
		return "corrupted"
	case errors.Is(err, types.ErrMalformedBlob), errors.As(err, &uv):
		return "malformed"
	case errors.Is(err, types.ErrKeyDestroyed):
		return "key_destroyed"
	}
	return "unknown"
}
