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
package session

import (
	"fmt"
	"time"

	"github.com/notapipeline/zkv/pkg/bus"
)

type State int

const (
	StateLocked State = iota
	StateUnlocking
	StateUnlocked
	StateDuressUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "LOCKED"
	case StateUnlocking:
		return "UNLOCKING"
	case StateUnlocked:
		return "UNLOCKED"
	case StateDuressUnlocked:
		return "DURESS_UNLOCKED"
	}
	return fmt.Sprintf("State(%d)", s)
}

// IsUnlocked is true for both the real and the decoy unlocked states
func (s State) IsUnlocked() bool {
	return s == StateUnlocked || s == StateDuressUnlocked
}

type LockReason string

const (
	ReasonNone       LockReason = ""
	ReasonManual     LockReason = "manual"
	ReasonLogout     LockReason = "logout"
	ReasonInactivity LockReason = "inactivity"
	ReasonHidden     LockReason = "visibility"
	ReasonPanic      LockReason = "panic"
	ReasonRemote     LockReason = "remote"
	ReasonClosed     LockReason = "closed"
)

// broadcast returns the event other sessions should receive when this
// session locks for reason r. Panic locks, locks caused by another session
// and process shutdown are not broadcast.
func (r LockReason) broadcast() (bus.EventType, bool) {
	switch r {
	case ReasonManual, ReasonLogout:
		return bus.EventLogout, true
	case ReasonInactivity, ReasonHidden:
		return bus.EventSessionExpired, true
	}
	return "", false
}

// Status is a point in time snapshot of a session
type Status struct {
	State        State
	Username     string
	LockReason   LockReason
	LastActivity time.Time

	// Recovered is set when the password verified but the stored vault
	// could not be read, and an empty vault was substituted.
	Recovered bool
}
