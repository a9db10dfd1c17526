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

const (
	BlobVersionV1 = "v1"

	SaltSize  = 32
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

// Argon2id defaults. Memory is expressed in KiB.
const (
	DefaultKDFMemory      uint32 = 64 * 1024
	DefaultKDFTime        uint32 = 3
	DefaultKDFParallelism uint8  = 4
)

const (
	AuditEntryCreated = "entry.created"
	AuditEntryUpdated = "entry.updated"
	AuditEntryDeleted = "entry.deleted"
	AuditEntryUsed    = "entry.used"
	AuditVaultCreated = "vault.created"
)

// Slot identifies which of the two server side blobs an operation targets.
type Slot int

const (
	SlotReal Slot = iota
	SlotDecoy
)

func (s Slot) String() string {
	switch s {
	case SlotReal:
		return "real"
	case SlotDecoy:
		return "decoy"
	}
	return "unknown"
}
