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
	"crypto/rand"
	"hash"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// These functions are referenced as variables to enable them to
// be mocked in tests
var (
	argon2IDKey func(password, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte = argon2.IDKey
	hkdfExpand  func(hash func() hash.Hash, pseudorandomKey, info []byte) io.Reader                  = hkdf.Expand

	randReader io.Reader = rand.Reader
)
