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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notapipeline/zkv/pkg/types"
)

// Mutator changes a vault in place. Mutators are always handed a copy of the
// held vault so returning an error discards every change they made.
type Mutator func(v *types.VaultData) error

// AddEntry appends e to the vault, assigning an ID if it has none
func AddEntry(e types.VaultEntry, now time.Time) Mutator {
	return func(v *types.VaultData) error {
		var (
			entry types.VaultEntry = e.Clone()
			ts    time.Time        = now.UTC()
		)
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if v.Entry(entry.ID) != nil {
			return fmt.Errorf("entry %s already exists", entry.ID)
		}
		entry.CreatedAt = ts
		entry.UpdatedAt = ts
		v.Entries = append(v.Entries, entry)
		touch(v, types.AuditEntryCreated, entry.ID, ts)
		return nil
	}
}

// UpdateEntry replaces the entry with the same ID, keeping its creation
// time and usage counters.
func UpdateEntry(e types.VaultEntry, now time.Time) Mutator {
	return func(v *types.VaultData) error {
		now = now.UTC()
		existing := v.Entry(e.ID)
		if existing == nil {
			return fmt.Errorf("%w: %s", types.ErrEntryNotFound, e.ID)
		}
		e = e.Clone()
		e.CreatedAt = existing.CreatedAt
		e.UsageCount = existing.UsageCount
		e.LastUsedAt = existing.LastUsedAt
		e.UpdatedAt = now
		*existing = e
		touch(v, types.AuditEntryUpdated, e.ID, now)
		return nil
	}
}

func DeleteEntry(id string, now time.Time) Mutator {
	return func(v *types.VaultData) error {
		now = now.UTC()
		for i := range v.Entries {
			if v.Entries[i].ID == id {
				v.Entries = append(v.Entries[:i], v.Entries[i+1:]...)
				touch(v, types.AuditEntryDeleted, id, now)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", types.ErrEntryNotFound, id)
	}
}

// RecordUsage bumps the usage counter of an entry
func RecordUsage(id string, now time.Time) Mutator {
	return func(v *types.VaultData) error {
		now = now.UTC()
		e := v.Entry(id)
		if e == nil {
			return fmt.Errorf("%w: %s", types.ErrEntryNotFound, id)
		}
		e.UsageCount++
		e.LastUsedAt = &now
		touch(v, types.AuditEntryUsed, id, now)
		return nil
	}
}

func touch(v *types.VaultData, action, id string, now time.Time) {
	v.AuditLog = append(v.AuditLog, types.AuditEvent{
		ID:        uuid.NewString(),
		Action:    action,
		EntryID:   id,
		Timestamp: now,
	})
	v.Metadata.UpdatedAt = now
}
