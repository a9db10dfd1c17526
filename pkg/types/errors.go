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
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPassword is the only error a caller sees for a failed unlock,
	// whichever internal path failed.
	ErrInvalidPassword = errors.New("invalid password")

	ErrDecryptionFailed     = errors.New("decryption failed")
	ErrCorruptedVault       = errors.New("vault is corrupted")
	ErrSessionLocked        = errors.New("session is locked")
	ErrUnlockInProgress     = errors.New("unlock already in progress")
	ErrAlreadyUnlocked      = errors.New("session is already unlocked")
	ErrKeyDestroyed         = errors.New("key has been destroyed")
	ErrMalformedBlob        = errors.New("malformed blob")
	ErrShareAlreadyConsumed = errors.New("share has already been consumed")
	ErrShareExpired         = errors.New("share has expired")
	ErrEntryNotFound        = errors.New("entry not found")

	// ErrUnknownUser may be returned by a remote when no salts exist for a
	// username. Sessions report it as ErrInvalidPassword.
	ErrUnknownUser = errors.New("unknown user")
)

// UnsupportedVersionError is returned when a blob frame carries a version
// this client does not understand.
type UnsupportedVersionError struct {
	Value string
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported blob version: %q", e.Value)
}

type MalformedBlobError struct {
	Reason string
	Err    error
}

func (e MalformedBlobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedBlob, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedBlob, e.Reason)
}

func (e MalformedBlobError) Unwrap() error {
	return e.Err
}

func (e MalformedBlobError) Is(target error) bool {
	return target == ErrMalformedBlob
}

type InvalidSaltError struct {
	Length int
}

func (e InvalidSaltError) Error() string {
	return fmt.Sprintf("invalid salt length: expected %d bytes, got %d", SaltSize, e.Length)
}

type InvalidKDFParamsError struct {
	Field string
	Value any
}

func (e InvalidKDFParamsError) Error() string {
	return fmt.Sprintf("invalid kdf parameter %s: %v", e.Field, e.Value)
}
