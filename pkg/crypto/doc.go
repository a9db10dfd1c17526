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

/*
Package crypto provides key derivation and authenticated encryption for the
vault.

A password is run through Argon2id twice with the same salt, once suffixed
with ContextVault and once with ContextAuth. The first output becomes a Key
held in memguard locked memory. The second is hashed with SHA-256 and
becomes the authentication digest sent to the server. Knowing the digest
does not give you the key.

	package main

	import (
		"fmt"

		"github.com/notapipeline/zkv/pkg/crypto"
		"github.com/notapipeline/zkv/pkg/types"
	)

	func main() {
		var password = []byte("Tr0ub4dor&3")
		defer crypto.Wipe(password)

		keys, err := crypto.DeriveKeys(password, nil, types.DefaultKDFParams())
		if err != nil {
			panic(err)
		}
		defer keys.Destroy()

		// keys.Salt and keys.AuthHash go to the server at registration

		blob, err := keys.EncryptionKey.Seal([]byte("hello"))
		if err != nil {
			panic(err)
		}

		plain, err := keys.EncryptionKey.Open(blob)
		if err != nil {
			panic(err)
		}
		fmt.Println(string(plain)) // "hello"
	}

Once Destroy has been called the key bytes are wiped and any further call
to Seal or Open returns types.ErrKeyDestroyed.
*/
package crypto
