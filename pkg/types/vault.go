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
	"time"
)

const VaultSchemaVersion = 1

// VaultData is the unit of encryption. The whole structure is serialised and
// sealed as a single blob; nothing inside it is encrypted separately.
type VaultData struct {
	Entries       []VaultEntry   `json:"entries"`
	Categories    []Category     `json:"categories"`
	Organizations []Organization `json:"organizations"`
	AuditLog      []AuditEvent   `json:"auditLog"`
	Metadata      VaultMetadata  `json:"metadata"`
}

type VaultMetadata struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type VaultEntry struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Username       string     `json:"username,omitempty"`
	Password       string     `json:"password,omitempty"`
	Email          string     `json:"email,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	RecoveryCodes  []string   `json:"recoveryCodes,omitempty"`
	URL            string     `json:"url,omitempty"`
	CategoryID     string     `json:"categoryId,omitempty"`
	OrganizationID string     `json:"organizationId,omitempty"`
	UsageCount     int        `json:"usageCount"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AuditEvent struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	EntryID   string    `json:"entryId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewVaultData creates an empty vault stamped with the given time
func NewVaultData(now time.Time) *VaultData {
	now = now.UTC()
	return &VaultData{
		Entries:       make([]VaultEntry, 0),
		Categories:    make([]Category, 0),
		Organizations: make([]Organization, 0),
		AuditLog:      make([]AuditEvent, 0),
		Metadata: VaultMetadata{
			Version:   VaultSchemaVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Entry returns a pointer to the entry with the given ID or nil
func (v *VaultData) Entry(id string) *VaultEntry {
	for i := range v.Entries {
		if v.Entries[i].ID == id {
			return &v.Entries[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the vault. Mutations are always applied to a
// clone so a failed update never leaves the held vault half modified.
func (v *VaultData) Clone() *VaultData {
	if v == nil {
		return nil
	}
	c := &VaultData{
		Metadata: v.Metadata,
	}
	if v.Entries != nil {
		c.Entries = make([]VaultEntry, len(v.Entries))
		for i, e := range v.Entries {
			c.Entries[i] = e.Clone()
		}
	}
	if v.Categories != nil {
		c.Categories = append(make([]Category, 0, len(v.Categories)), v.Categories...)
	}
	if v.Organizations != nil {
		c.Organizations = append(make([]Organization, 0, len(v.Organizations)), v.Organizations...)
	}
	if v.AuditLog != nil {
		c.AuditLog = append(make([]AuditEvent, 0, len(v.AuditLog)), v.AuditLog...)
	}
	return c
}

func (e VaultEntry) Clone() VaultEntry {
	if e.RecoveryCodes != nil {
		e.RecoveryCodes = append(make([]string, 0, len(e.RecoveryCodes)), e.RecoveryCodes...)
	}
	if e.LastUsedAt != nil {
		t := *e.LastUsedAt
		e.LastUsedAt = &t
	}
	return e
}
