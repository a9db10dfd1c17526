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
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/notapipeline/zkv/pkg/transport"
	"github.com/notapipeline/zkv/pkg/types"
)

// HTTP talks to the vault server's /api/v1 endpoints
type HTTP struct {
	Server string
	Client transport.HttpClient
}

// NewHTTP uses transport.DefaultHttpClient
func NewHTTP(server string) *HTTP {
	return &HTTP{
		Server: strings.TrimRight(server, "/"),
		Client: transport.DefaultHttpClient,
	}
}

// Close is a no-op. HTTP holds no resources beyond its client.
func (h *HTTP) Close() error {
	return nil
}

func (h *HTTP) endpoint(path string, query url.Values) string {
	u := h.Server + "/api/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func authorised(ctx context.Context, authHash string) context.Context {
	return context.WithValue(ctx, transport.AuthToken{}, authHash)
}

func (h *HTTP) FetchSalts(ctx context.Context, username string) (types.Salts, error) {
	var salts types.Salts
	err := h.Client.Get(ctx, h.endpoint("/salts", url.Values{"username": {username}}), &salts)
	var notFound *transport.ErrNotFound
	if errors.As(err, &notFound) {
		return salts, types.ErrUnknownUser
	}
	return salts, err
}

func (h *HTTP) VerifyAuthHash(ctx context.Context, username, authHash string) (bool, error) {
	var response types.VerifyResponse
	err := h.Client.Post(ctx, h.endpoint("/verify", nil), &response, types.VerifyRequest{
		Username: username,
		AuthHash: authHash,
	})
	var unauthorised *transport.ErrUnauthorized
	if errors.As(err, &unauthorised) {
		return false, nil
	}
	return response.Valid, err
}

func (h *HTTP) GetVault(ctx context.Context, username, authHash string) (types.VaultBlobs, error) {
	var blobs types.VaultBlobs
	err := h.Client.Get(authorised(ctx, authHash), h.endpoint("/vault", url.Values{"username": {username}}), &blobs)
	return blobs, mapAuthError(err)
}

func (h *HTTP) PutVault(ctx context.Context, username, authHash string, slot types.Slot, blob string) error {
	var response types.StatusMessage
	err := h.Client.Put(authorised(ctx, authHash), h.endpoint("/vault", nil), &response, types.PutVaultRequest{
		Username: username,
		AuthHash: authHash,
		Slot:     slot.String(),
		Vault:    blob,
	})
	return mapAuthError(err)
}

func (h *HTTP) Register(ctx context.Context, req types.RegisterRequest) error {
	var response types.StatusMessage
	err := h.Client.Post(ctx, h.endpoint("/register", nil), &response, req)
	var conflict *transport.ErrConflict
	if errors.As(err, &conflict) {
		return ErrUserExists
	}
	return err
}

func (h *HTTP) EnrollDuress(ctx context.Context, req types.DuressRequest) error {
	var response types.StatusMessage
	err := h.Client.Post(authorised(ctx, req.AuthHash), h.endpoint("/duress", nil), &response, req)
	return mapAuthError(err)
}

func (h *HTTP) StoreShare(ctx context.Context, encryptedPayload string, ttl time.Duration) (string, error) {
	var response types.StoreShareResponse
	err := h.Client.Post(ctx, h.endpoint("/shares", nil), &response, types.StoreShareRequest{
		EncryptedPayload: encryptedPayload,
		TTL:              ttl,
	})
	if err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", fmt.Errorf("server returned an empty share id")
	}
	return response.ID, nil
}

// BurnShare retrieves and deletes a share. A 410 means it was already
// retrieved, a 404 that it expired or never existed.
func (h *HTTP) BurnShare(ctx context.Context, id string) (string, error) {
	var response types.BurnShareResponse
	err := h.Client.Post(ctx, h.endpoint("/shares/"+url.PathEscape(id)+"/burn", nil), &response, struct{}{})

	var (
		gone     *transport.ErrGone
		notFound *transport.ErrNotFound
	)
	switch {
	case errors.As(err, &gone):
		return "", types.ErrShareAlreadyConsumed
	case errors.As(err, &notFound):
		return "", types.ErrShareExpired
	case err != nil:
		return "", err
	}
	return response.EncryptedPayload, nil
}

func mapAuthError(err error) error {
	var (
		unauthorised *transport.ErrUnauthorized
		forbidden    *transport.ErrForbidden
	)
	if errors.As(err, &unauthorised) || errors.As(err, &forbidden) {
		return ErrUnauthorized
	}
	return err
}
