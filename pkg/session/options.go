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
	"context"
	"time"

	"github.com/notapipeline/zkv/pkg/bus"
	"github.com/notapipeline/zkv/pkg/types"
)

const (
	DefaultInactivityTimeout = 15 * time.Minute
	DefaultHiddenThreshold   = 5 * time.Minute
)

// Remote is the zero knowledge server as seen by a session. It only ever
// receives salts, authentication digests and ciphertext.
type Remote interface {
	FetchSalts(ctx context.Context, username string) (types.Salts, error)
	VerifyAuthHash(ctx context.Context, username, authHash string) (bool, error)
	GetVault(ctx context.Context, username, authHash string) (types.VaultBlobs, error)
	PutVault(ctx context.Context, username, authHash string, slot types.Slot, blob string) error
}

// Registrar covers the one off enrolment calls
type Registrar interface {
	Register(ctx context.Context, req types.RegisterRequest) error
	EnrollDuress(ctx context.Context, req types.DuressRequest) error
}

type Clock interface {
	Now() time.Time
}

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Only the session arms or cancels its
// timers.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Options struct {
	Params types.KDFParams

	// Inactivity auto lock is off unless explicitly enabled.
	InactivityLock    bool
	InactivityTimeout time.Duration

	// A session hidden for at least HiddenThreshold locks when it becomes
	// visible again.
	VisibilityLock  bool
	HiddenThreshold time.Duration

	Bus       bus.Bus
	Clock     Clock
	Scheduler Scheduler
}

func DefaultOptions() Options {
	return Options{
		Params:            types.DefaultKDFParams(),
		InactivityLock:    false,
		InactivityTimeout: DefaultInactivityTimeout,
		VisibilityLock:    true,
		HiddenThreshold:   DefaultHiddenThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Scheduler == nil {
		o.Scheduler = systemScheduler{}
	}
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = DefaultInactivityTimeout
	}
	if o.HiddenThreshold <= 0 {
		o.HiddenThreshold = DefaultHiddenThreshold
	}
	o.Params = o.Params.WithDefaults()
	return o
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
