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

import "time"

// Salts is what the server returns for a username. Duress is nil unless a
// duress password has been enrolled.
type Salts struct {
	Real   Salt `json:"salt"`
	Duress Salt `json:"duressSalt,omitempty"`
}

// VaultBlobs holds the transport form of both stored vaults. Either may be
// empty.
type VaultBlobs struct {
	Real  string `json:"vault"`
	Decoy string `json:"decoy,omitempty"`
}

type VerifyRequest struct {
	Username string `json:"username"`
	AuthHash string `json:"authHash"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     Salt   `json:"salt"`
	AuthHash string `json:"authHash"`
	Vault    string `json:"vault"`
}

// DuressRequest enrols a duress identity. AuthHash is the real identity's
// digest and authorises the call.
type DuressRequest struct {
	Username       string `json:"username"`
	AuthHash       string `json:"authHash"`
	DuressSalt     Salt   `json:"duressSalt"`
	DuressAuthHash string `json:"duressAuthHash"`
	Decoy          string `json:"decoy"`
}

type PutVaultRequest struct {
	Username string `json:"username"`
	AuthHash string `json:"authHash"`
	Slot     string `json:"slot"`
	Vault    string `json:"vault"`
}

type StoreShareRequest struct {
	EncryptedPayload string        `json:"encryptedPayload"`
	TTL              time.Duration `json:"ttl"`
}

type StoreShareResponse struct {
	ID string `json:"id"`
}

type BurnShareResponse struct {
	EncryptedPayload string `json:"encryptedPayload"`
}

// StatusMessage mirrors the generic {statuscode, message} body the server
// sends for non data responses.
type StatusMessage struct {
	Code    int    `json:"statuscode"`
	Message string `json:"message"`
}
