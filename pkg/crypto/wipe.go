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

import "github.com/awnumar/memguard"

// Wipe overwrites b with random data and then zeroes it.
//
// Go strings are immutable and cannot be wiped. Secrets should stay in
// []byte from the point they are read until they are released.
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.ScrambleBytes(b)
	memguard.WipeBytes(b)
}

// WipeAll wipes each of the given slices
func WipeAll(bs ...[]byte) {
	for _, b := range bs {
		Wipe(b)
	}
}
