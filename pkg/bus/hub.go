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
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Hub is an in process broadcast channel. Each session gets its own
// Endpoint; an event published on one endpoint is delivered to every other
// endpoint's subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[Token]subscription
}

type subscription struct {
	origin  string
	handler Handler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[Token]subscription)}
}

// Endpoint returns a new participant on the hub
func (h *Hub) Endpoint() *Endpoint {
	return &Endpoint{hub: h, origin: uuid.NewString()}
}

// deliver calls every handler not owned by origin. Handlers run
// synchronously and outside the hub lock so they may publish or
// unsubscribe.
func (h *Hub) deliver(e Event) {
	h.mu.RLock()
	var handlers []Handler = make([]Handler, 0, len(h.subs))
	for _, s := range h.subs {
		if s.origin != e.Origin {
			handlers = append(handlers, s.handler)
		}
	}
	h.mu.RUnlock()

	log.Debug().Str("type", string(e.Type)).Int("receivers", len(handlers)).Msg("broadcasting event")
	for _, handler := range handlers {
		handler(e)
	}
}

type Endpoint struct {
	hub    *Hub
	origin string

	mu     sync.Mutex
	tokens map[Token]struct{}
	closed bool
}

func (e *Endpoint) Origin() string {
	return e.origin
}

func (e *Endpoint) Publish(ev Event) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	ev.Origin = e.origin
	e.hub.deliver(ev)
	return nil
}

func (e *Endpoint) Subscribe(h Handler) (Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrClosed
	}
	if e.tokens == nil {
		e.tokens = make(map[Token]struct{})
	}

	var t Token = Token(uuid.NewString())
	e.tokens[t] = struct{}{}

	e.hub.mu.Lock()
	e.hub.subs[t] = subscription{origin: e.origin, handler: h}
	e.hub.mu.Unlock()
	return t, nil
}

func (e *Endpoint) Unsubscribe(t Token) {
	e.mu.Lock()
	delete(e.tokens, t)
	e.mu.Unlock()

	e.hub.mu.Lock()
	delete(e.hub.subs, t)
	e.hub.mu.Unlock()
}

// Close removes every subscription made through this endpoint
func (e *Endpoint) Close() {
	e.mu.Lock()
	tokens := e.tokens
	e.tokens = nil
	e.closed = true
	e.mu.Unlock()

	e.hub.mu.Lock()
	for t := range tokens {
		delete(e.hub.subs, t)
	}
	e.hub.mu.Unlock()
}
