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
	"encoding/base64"
	"encoding/json"
)

var b64enc = base64.StdEncoding.Strict()

// EncryptedBlob - everything the server holds for a vault is one of these.
//
// On the wire the blob is a base64 string which decodes to:
//
//	{"version":"v1","nonce":"<b64>","ciphertext":"<b64>"}
//
// Where:
//
//	<version> is the frame version. Only "v1" is understood. Anything
//	          else is rejected before any decryption is attempted.
//	<nonce> is the 96 bit AES-GCM nonce, fresh for every encryption
//	<ciphertext> is the sealed payload with the 16 byte tag appended
type EncryptedBlob struct {
	Version string

	Nonce, Ciphertext []byte
}

type blobFrame struct {
	Version    string `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// IsZero - returns true if the blob is empty
func (b EncryptedBlob) IsZero() bool {
	return b.Version == "" && b.Nonce == nil && b.Ciphertext == nil
}

// MarshalText - convert an EncryptedBlob to its transport form
func (b EncryptedBlob) MarshalText() ([]byte, error) {
	if b.IsZero() {
		return []byte{}, nil
	}
	frame, err := json.Marshal(blobFrame{
		Version:    b.Version,
		Nonce:      b64enc.EncodeToString(b.Nonce),
		Ciphertext: b64enc.EncodeToString(b.Ciphertext),
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, b64enc.EncodedLen(len(frame)))
	b64enc.Encode(out, frame)
	return out, nil
}

// String - convert an EncryptedBlob to a string
func (b EncryptedBlob) String() string {
	s, _ := b.MarshalText()
	return string(s)
}

// UnmarshalText - parse the transport form of an EncryptedBlob
//
// An empty input leaves the blob zeroed. The version is checked before the
// nonce and ciphertext are decoded.
func (b *EncryptedBlob) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var (
		raw   []byte
		frame blobFrame
		err   error
	)

	if raw, err = b64decode(data); err != nil {
		return MalformedBlobError{Reason: "invalid encoding", Err: err}
	}

	if err = json.Unmarshal(raw, &frame); err != nil {
		return MalformedBlobError{Reason: "invalid frame", Err: err}
	}

	if frame.Version != BlobVersionV1 {
		return UnsupportedVersionError{Value: frame.Version}
	}

	var parsed EncryptedBlob = EncryptedBlob{Version: frame.Version}
	if parsed.Nonce, err = b64decode([]byte(frame.Nonce)); err != nil {
		return MalformedBlobError{Reason: "invalid nonce", Err: err}
	}
	if len(parsed.Nonce) != NonceSize {
		return MalformedBlobError{Reason: "invalid nonce length"}
	}

	if parsed.Ciphertext, err = b64decode([]byte(frame.Ciphertext)); err != nil {
		return MalformedBlobError{Reason: "invalid ciphertext", Err: err}
	}
	if len(parsed.Ciphertext) < TagSize {
		return MalformedBlobError{Reason: "ciphertext too short"}
	}

	*b = parsed
	return nil
}

// ParseBlob parses a transport string into an EncryptedBlob. Unlike
// UnmarshalText an empty string is an error.
func ParseBlob(s string) (EncryptedBlob, error) {
	var b EncryptedBlob
	if s == "" {
		return b, MalformedBlobError{Reason: "empty blob"}
	}
	err := b.UnmarshalText([]byte(s))
	return b, err
}

func b64decode(src []byte) (dst []byte, err error) {
	var n int
	dst = make([]byte, b64enc.DecodedLen(len(src)))
	if n, err = b64enc.Decode(dst, src); err != nil {
		return nil, err
	}
	dst = dst[:n]
	return
}
