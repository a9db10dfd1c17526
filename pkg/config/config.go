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
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/notapipeline/zkv/pkg/session"
	"github.com/notapipeline/zkv/pkg/types"
)

// These functions are referenced as variables to enable them to
// be mocked in tests
var (
	ConfigPath       func() string = getConfigPath
	OfflineStorePath func() string = getOfflineStorePath
)

const (
	DefaultShareTTL = 24 * time.Hour
	DefaultTimeout  = 10 * time.Second
)

type SessionConfig struct {
	InactivityLock    bool          `yaml:"inactivityLock" env:"ZKV_INACTIVITY_LOCK"`
	InactivityTimeout time.Duration `yaml:"inactivityTimeout" env:"ZKV_INACTIVITY_TIMEOUT"`
	VisibilityLock    bool          `yaml:"visibilityLock" env:"ZKV_VISIBILITY_LOCK"`
	HiddenThreshold   time.Duration `yaml:"hiddenThreshold" env:"ZKV_HIDDEN_THRESHOLD"`
}

type ShareConfig struct {
	BaseURL string        `yaml:"baseUrl" env:"ZKV_SHARE_BASE_URL"`
	TTL     time.Duration `yaml:"ttl" env:"ZKV_SHARE_TTL"`
}

type BreachConfig struct {
	Endpoint string `yaml:"endpoint" env:"ZKV_BREACH_ENDPOINT"`
}

type Config struct {
	Server       string        `yaml:"server" env:"ZKV_SERVER"`
	Username     string        `yaml:"username" env:"ZKV_USERNAME"`
	Offline      bool          `yaml:"offline" env:"ZKV_OFFLINE"`
	OfflineStore string        `yaml:"offlineStore" env:"ZKV_OFFLINE_STORE"`
	Timeout      time.Duration `yaml:"timeout" env:"ZKV_TIMEOUT"`
	Debug        bool          `yaml:"debug" env:"ZKV_DEBUG"`
	Quiet        bool          `yaml:"quiet" env:"ZKV_QUIET"`

	KDF     types.KDFParams `yaml:"kdf"`
	Session SessionConfig   `yaml:"session"`
	Share   ShareConfig     `yaml:"share"`
	Breach  BreachConfig    `yaml:"breach"`
}

// New returns a config holding the defaults
func New() *Config {
	defaults := session.DefaultOptions()
	return &Config{
		Timeout: DefaultTimeout,
		KDF:     defaults.Params,
		Session: SessionConfig{
			InactivityLock:    defaults.InactivityLock,
			InactivityTimeout: defaults.InactivityTimeout,
			VisibilityLock:    defaults.VisibilityLock,
			HiddenThreshold:   defaults.HiddenThreshold,
		},
		Share: ShareConfig{
			TTL: DefaultShareTTL,
		},
	}
}

// Load the config file from user local config directory
//
// The config file will be loaded from ~/.config/zkv/config.yaml if it exists
// and then the environment will be checked for overrides.
//
// Users are expected to call `Merge` afterwards to override the config with
// command line options.
func (c *Config) Load() (err error) {
	if err = c.loadYaml(); err != nil {
		return
	}
	if err = c.loadEnv(); err != nil {
		return
	}
	return c.Validate()
}

func (c *Config) loadYaml() (err error) {
	var (
		cp       string = ConfigPath()
		yamlFile []byte
	)

	if _, err = os.Stat(cp); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if yamlFile, err = os.ReadFile(cp); err != nil {
		return err
	}

	log.Debug().Str("path", cp).Msg("loading config file")
	return yaml.Unmarshal(yamlFile, c)
}

func (c *Config) loadEnv() (err error) {
	return env.Parse(c)
}

// Validate rejects values that could never work
func (c *Config) Validate() error {
	return c.KDF.WithDefaults().Validate()
}

func (c *Config) Merge(cmd types.ClientCmd) {
	if cmd.Server != "" {
		c.Server = cmd.Server
	}
	if cmd.Username != "" {
		c.Username = cmd.Username
	}
	if cmd.Offline {
		c.Offline = cmd.Offline
	}
	if cmd.Debug {
		c.Debug = cmd.Debug
	}
	if cmd.Quiet {
		c.Quiet = cmd.Quiet
	}
}

func (c *Config) Save() (err error) {
	var data []byte
	if data, err = yaml.Marshal(c); err != nil {
		return err
	}

	var cp string = ConfigPath()
	if err = os.MkdirAll(filepath.Dir(cp), 0700); err != nil {
		return err
	}
	return os.WriteFile(cp, data, 0600)
}

// LogLevel maps the debug and quiet flags onto a zerolog level. Quiet wins.
func (c *Config) LogLevel() zerolog.Level {
	switch {
	case c.Quiet:
		return zerolog.ErrorLevel
	case c.Debug:
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// SessionOptions builds session options from the config
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.Params = c.KDF.WithDefaults()
	opts.InactivityLock = c.Session.InactivityLock
	opts.InactivityTimeout = c.Session.InactivityTimeout
	opts.VisibilityLock = c.Session.VisibilityLock
	opts.HiddenThreshold = c.Session.HiddenThreshold
	return opts
}

// OfflineStoreFile is where offline mode keeps its data
func (c *Config) OfflineStoreFile() string {
	if c.OfflineStore != "" {
		return c.OfflineStore
	}
	return OfflineStorePath()
}

// ShareBase is the address share links point at
func (c *Config) ShareBase() string {
	if c.Share.BaseURL != "" {
		return c.Share.BaseURL
	}
	if c.Server != "" {
		return c.Server
	}
	return "zkv://local"
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "zkv", "config.yaml")
}

func getOfflineStorePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "zkv", "offline.db")
}
