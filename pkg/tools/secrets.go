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
package tools

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"r00t2.io/gokwallet"
	"r00t2.io/gosecret"
)

const (
	walletFolder = "Passwords"
	walletMap    = "zkv"
)

var errSkipped = errors.New("skipped")

// These functions are referenced as variables to enable them to
// be mocked in tests
var (
	secretFromKWallet        func(what string) (string, error) = getSecretFromKWallet
	secretFromSecretsService func(what string) (string, error) = getSecretFromSecretsService
)

// LookupSecret finds a secret without asking the user.
//
// Order is:
// 1. Environment
// 2. KWallet
// 3. Secret Service
func LookupSecret(what string) (string, bool) {
	if value, ok := os.LookupEnv(what); ok && value != "" {
		return value, true
	}

	if value, err := secretFromKWallet(what); err == nil && value != "" {
		return value, true
	} else if err != nil && !errors.Is(err, errSkipped) {
		log.Debug().Err(err).Msg("kwallet lookup failed")
	}

	if value, err := secretFromSecretsService(what); err == nil && value != "" {
		return value, true
	} else if err != nil && !errors.Is(err, errSkipped) {
		log.Debug().Err(err).Msg("secret service lookup failed")
	}
	return "", false
}

// GetSecret returns the named secret from the environment or a secrets
// store, prompting for it if interactive is set and nothing was found.
func GetSecret(what, title, description, prompt string, interactive bool) ([]byte, error) {
	if value, ok := LookupSecret(what); ok {
		return []byte(value), nil
	}
	if !interactive {
		return nil, ErrNoPassword
	}
	return GetPassword(title, description, prompt)
}

// Gets a secret value from kwallet
func getSecretFromKWallet(what string) (string, error) {
	if os.Getenv("USE_LIBSECRET") != "" {
		return "", errSkipped
	}

	var (
		err error
		r   *gokwallet.RecurseOpts = gokwallet.DefaultRecurseOpts
		wm  *gokwallet.WalletManager
	)

	r.AllWalletItems = true
	if wm, err = gokwallet.NewWalletManager(r, "zkv"); err != nil {
		return "", err
	}

	for _, v := range wm.Wallets {
		if f, ok := v.Folders[walletFolder]; ok {
			if m, ok := f.Maps[walletMap]; ok {
				if p, ok := m.Value[what]; ok {
					return p, nil
				}
			}
		}
	}
	return "", nil
}

// Gets a secret from libsecrets
func getSecretFromSecretsService(what string) (string, error) {
	if os.Getenv("USE_KWALLET") != "" {
		return "", errSkipped
	}

	var (
		err           error
		service       *gosecret.Service
		unlockedItems []*gosecret.Item
	)

	if service, err = gosecret.NewService(); err != nil {
		return "", err
	}
	defer service.Close()

	service.Legacy = true
	if unlockedItems, _, err = service.SearchItems(map[string]string{
		"Path": "/" + walletFolder + "/" + walletMap,
	}); err != nil {
		return "", err
	}

	for _, item := range unlockedItems {
		attributes, _ := item.Attributes()
		if value, ok := attributes[what]; ok {
			return value, nil
		}
	}
	return "", nil
}
