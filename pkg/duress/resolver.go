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

// Package duress decides which of two independently salted vaults a
// password opens.
//
// The real vault is always tried first. The decoy is only tried if the real
// vault did not open. When neither opens the caller gets
// types.ErrInvalidPassword and nothing else, so a wrong password and a
// duress password that happens to miss look identical from outside.
package duress

import (
	"github.com/rs/zerolog/log"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/types"
	"github.com/notapipeline/zkv/pkg/vault"
)

// DeriveFunc produces keys for the password being resolved against salt
type DeriveFunc func(salt types.Salt) (*crypto.DerivedKeys, error)

type Input struct {
	RealSalt   types.Salt
	RealBlob   string
	DuressSalt types.Salt
	DecoyBlob  string
}

// Result of a successful resolution. Keys belong to the caller and must be
// destroyed when no longer required.
type Result struct {
	Vault  *types.VaultData
	IsReal bool
	Keys   *crypto.DerivedKeys
}

type Resolver struct {
	Params types.KDFParams
}

func New(params types.KDFParams) *Resolver {
	return &Resolver{Params: params}
}

// Resolve derives keys for password against each salt in turn
func (r *Resolver) Resolve(password []byte, in Input) (*Result, error) {
	return r.ResolveWith(func(salt types.Salt) (*crypto.DerivedKeys, error) {
		return crypto.DeriveKeys(password, salt, r.Params)
	}, in)
}

// ResolveWith is Resolve with a caller supplied derivation, used when keys
// for one or both salts already exist.
//
// If no duress salt is enrolled a throwaway derivation is still performed
// after a real failure, so the work done does not reveal whether one exists.
func (r *Resolver) ResolveWith(derive DeriveFunc, in Input) (*Result, error) {
	if v, keys := attempt(derive, in.RealSalt, in.RealBlob, types.SlotReal); v != nil {
		return &Result{Vault: v, IsReal: true, Keys: keys}, nil
	}

	if in.DuressSalt.IsZero() {
		r.burn(derive)
		return nil, types.ErrInvalidPassword
	}

	if v, keys := attempt(derive, in.DuressSalt, in.DecoyBlob, types.SlotDecoy); v != nil {
		return &Result{Vault: v, IsReal: false, Keys: keys}, nil
	}
	return nil, types.ErrInvalidPassword
}

func (r *Resolver) burn(derive DeriveFunc) {
	salt, err := types.NewSalt()
	if err != nil {
		return
	}
	if keys, err := derive(salt); err == nil {
		keys.Destroy()
	}
}

func attempt(derive DeriveFunc, salt types.Salt, blob string, slot types.Slot) (*types.VaultData, *crypto.DerivedKeys) {
	if salt.IsZero() {
		return nil, nil
	}

	keys, err := derive(salt)
	if err != nil {
		log.Debug().Str("slot", slot.String()).Msg("key derivation failed")
		return nil, nil
	}

	if blob == "" {
		keys.Destroy()
		return nil, nil
	}

	v, err := vault.DecryptVault(blob, keys.EncryptionKey)
	if err != nil {
		log.Debug().Str("slot", slot.String()).Str("kind", vault.ErrorKind(err)).Msg("vault did not open")
		keys.Destroy()
		return nil, nil
	}
	return v, keys
}
