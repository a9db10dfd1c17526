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
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	EventLogout         EventType = "LOGOUT"
	EventSessionExpired EventType = "SESSION_EXPIRED"
)

var ErrClosed = errors.New("bus endpoint is closed")

// Event is the revocation message sent between sessions. Receivers treat
// both event types as "lock now".
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Origin identifies the publishing endpoint so it can ignore its own
	// messages. Filled in by Publish.
	Origin string `json:"origin,omitempty"`
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Type {
	case EventLogout, EventSessionExpired:
	default:
		return fmt.Errorf("unknown event type %q", a.Type)
	}
	*e = Event(a)
	return nil
}

type Handler func(Event)

// Token identifies a subscription
type Token string

// Bus is what a session needs from its revocation transport
type Bus interface {
	Publish(e Event) error
	Subscribe(h Handler) (Token, error)
	Unsubscribe(t Token)
}
