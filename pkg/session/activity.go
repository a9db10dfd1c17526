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
	"time"

	"github.com/rs/zerolog/log"
)

// Touch records user activity. It has no effect while locked.
//
// The pending inactivity timer is left alone. When it fires it compares the
// idle time against the last activity and re-arms for whatever remains.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsUnlocked() {
		s.lastActivity = s.opts.Clock.Now()
	}
}

// SetVisible reports a change in visibility of the surface showing the
// session.
//
// A session that was hidden for at least the hidden threshold locks when it
// becomes visible again. The hidden period is treated as an untrusted gap.
func (s *Session) SetVisible(visible bool) {
	s.mu.Lock()
	now := s.opts.Clock.Now()

	if !visible {
		if s.hiddenAt.IsZero() && s.state.IsUnlocked() {
			s.hiddenAt = now
		}
		s.mu.Unlock()
		return
	}

	hiddenAt := s.hiddenAt
	s.hiddenAt = time.Time{}
	if hiddenAt.IsZero() || !s.state.IsUnlocked() || !s.opts.VisibilityLock {
		s.mu.Unlock()
		return
	}

	gap := now.Sub(hiddenAt)
	if gap < s.opts.HiddenThreshold {
		s.lastActivity = now
		s.mu.Unlock()
		return
	}

	log.Debug().Dur("hidden", gap).Msg("hidden longer than threshold")
	keys, event, ok := s.lockLocked(ReasonHidden)
	s.mu.Unlock()

	keys.Destroy()
	if ok {
		s.publish(event)
	}
}

// armInactivity schedules the inactivity check. Called with s.mu held.
func (s *Session) armInactivity() {
	s.stopTimer()
	if !s.opts.InactivityLock {
		return
	}
	s.schedule(s.opts.InactivityTimeout)
}

func (s *Session) schedule(d time.Duration) {
	epoch := s.epoch
	s.timer = s.opts.Scheduler.AfterFunc(d, func() {
		s.expire(epoch)
	})
}

// expire fires when the inactivity timer elapses. If there was activity
// since it was armed the timer is re-armed for the remaining time.
func (s *Session) expire(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || !s.state.IsUnlocked() {
		s.mu.Unlock()
		return
	}

	idle := s.opts.Clock.Now().Sub(s.lastActivity)
	if remaining := s.opts.InactivityTimeout - idle; remaining > 0 {
		s.schedule(remaining)
		s.mu.Unlock()
		return
	}

	keys, event, ok := s.lockLocked(ReasonInactivity)
	s.mu.Unlock()

	keys.Destroy()
	if ok {
		s.publish(event)
	}
}

// stopTimer cancels any pending timer. Called with s.mu held.
func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
