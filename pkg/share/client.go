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
package share

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/vault"
)

// Store is the server side of a share. BurnShare must return the payload
// and delete it in one step.
type Store interface {
	StoreShare(ctx context.Context, encryptedPayload string, ttl time.Duration) (string, error)
	BurnShare(ctx context.Context, id string) (string, error)
}

type Client struct {
	Store Store

	// Base is the public address links are built against
	Base string
}

func NewClient(store Store, base string) *Client {
	return &Client{Store: store, Base: base}
}

// Send seals payload, uploads the ciphertext and returns the link
func (c *Client) Send(ctx context.Context, payload any, ttl time.Duration) (string, error) {
	s, err := CreateShare(payload)
	if err != nil {
		return "", err
	}
	defer s.Wipe()

	id, err := c.Store.StoreShare(ctx, s.EncryptedPayload, ttl)
	if err != nil {
		return "", err
	}
	return BuildLink(c.Base, id, s.Key), nil
}

// Receive retrieves and burns the share behind link, then opens it into
// out. A second call for the same link fails with
// types.ErrShareAlreadyConsumed.
func (c *Client) Receive(ctx context.Context, link string, out any) error {
	id, key, err := ParseLink(link)
	if err != nil {
		return err
	}

	payload, err := c.Store.BurnShare(ctx, id)
	if err != nil {
		crypto.Wipe(key)
		return err
	}

	if err = OpenShare(payload, key, out); err != nil {
		log.Warn().Str("kind", vault.ErrorKind(err)).Msg("share could not be opened")
		return err
	}
	return nil
}
