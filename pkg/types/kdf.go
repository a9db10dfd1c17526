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
	"crypto/rand"
	"io"
)

// Salt is a random 256 bit value. One exists per user per identity (real or
// duress) and is safe to store and send in the clear.
type Salt []byte

// NewSalt returns a fresh random salt
func NewSalt() (Salt, error) {
	var s Salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s Salt) IsZero() bool {
	return len(s) == 0
}

func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Salt) String() string {
	if s.IsZero() {
		return ""
	}
	return b64enc.EncodeToString(s)
}

func (s *Salt) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*s = nil
		return nil
	}
	b, err := b64decode(data)
	if err != nil {
		return err
	}
	if len(b) != SaltSize {
		return InvalidSaltError{Length: len(b)}
	}
	*s = b
	return nil
}

// KDFParams are the Argon2id cost parameters. Memory is in KiB.
type KDFParams struct {
	Memory      uint32 `json:"memory" yaml:"memory" env:"ZKV_KDF_MEMORY"`
	Time        uint32 `json:"time" yaml:"time" env:"ZKV_KDF_TIME"`
	Parallelism uint8  `json:"parallelism" yaml:"parallelism" env:"ZKV_KDF_PARALLELISM"`
}

func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:      DefaultKDFMemory,
		Time:        DefaultKDFTime,
		Parallelism: DefaultKDFParallelism,
	}
}

// WithDefaults fills any zero value with the package default
func (p KDFParams) WithDefaults() KDFParams {
	if p.Memory == 0 {
		p.Memory = DefaultKDFMemory
	}
	if p.Time == 0 {
		p.Time = DefaultKDFTime
	}
	if p.Parallelism == 0 {
		p.Parallelism = DefaultKDFParallelism
	}
	return p
}

// Validate checks the parameters are usable by argon2.IDKey. Argon2 requires
// at least 8 KiB of memory per lane.
func (p KDFParams) Validate() error {
	switch {
	case p.Time < 1:
		return InvalidKDFParamsError{Field: "time", Value: p.Time}
	case p.Parallelism < 1:
		return InvalidKDFParamsError{Field: "parallelism", Value: p.Parallelism}
	case p.Memory < 8*uint32(p.Parallelism):
		return InvalidKDFParamsError{Field: "memory", Value: p.Memory}
	}
	return nil
}
