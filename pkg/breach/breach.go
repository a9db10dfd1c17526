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

// Package breach checks passwords against a k-anonymity range service.
//
// Only the first five hex characters of the SHA-1 fingerprint leave the
// process. Matching against the returned suffixes happens locally.
package breach

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/notapipeline/zkv/pkg/crypto"
	"github.com/notapipeline/zkv/pkg/transport"
)

const (
	DefaultEndpoint = "https://api.pwnedpasswords.com"
	PrefixLength    = 5

	// DefaultInterval spaces out range requests made by one process
	DefaultInterval = 200 * time.Millisecond
)

var ErrEmptyPassword = errors.New("password must not be empty")

// Suffix is one line of a range response
type Suffix struct {
	Hash  string
	Count int
}

type RangeClient interface {
	Range(ctx context.Context, prefix string) ([]Suffix, error)
}

// HTTPRange queries <Endpoint>/range/<prefix>. When Limiter is set each
// request waits for a token first.
type HTTPRange struct {
	Endpoint string
	Client   transport.HttpClient
	Limiter  *rate.Limiter
}

func NewHTTPRange(endpoint string) *HTTPRange {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPRange{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   transport.DefaultHttpClient,
		Limiter:  rate.NewLimiter(rate.Every(DefaultInterval), 1),
	}
}

func (h *HTTPRange) Range(ctx context.Context, prefix string) ([]Suffix, error) {
	if h.Limiter != nil {
		if err := h.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body []byte
	if err := h.Client.Get(ctx, h.Endpoint+"/range/"+prefix, &body); err != nil {
		return nil, err
	}
	return ParseRange(body)
}

// ParseRange reads SUFFIX:COUNT lines. Blank lines are ignored.
func ParseRange(body []byte) ([]Suffix, error) {
	var (
		suffixes []Suffix
		scanner  *bufio.Scanner = bufio.NewScanner(bytes.NewReader(body))
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		hash, count, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid range line %q", line)
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return nil, fmt.Errorf("invalid count in range line %q: %w", line, err)
		}
		suffixes = append(suffixes, Suffix{Hash: strings.ToUpper(hash), Count: n})
	}
	return suffixes, scanner.Err()
}

type Checker struct {
	Range RangeClient
}

func NewChecker(r RangeClient) *Checker {
	return &Checker{Range: r}
}

// Check returns how many times password appears in known breaches. The
// password is not modified.
func (c *Checker) Check(ctx context.Context, password []byte) (int, error) {
	if len(password) == 0 {
		return 0, ErrEmptyPassword
	}

	digest := sha1.Sum(password)
	fingerprint := make([]byte, hex.EncodedLen(len(digest)))
	hex.Encode(fingerprint, digest[:])
	crypto.Wipe(digest[:])
	defer crypto.Wipe(fingerprint)

	fingerprint = bytes.ToUpper(fingerprint)
	defer crypto.Wipe(fingerprint)

	var (
		prefix string = string(fingerprint[:PrefixLength])
		suffix []byte = fingerprint[PrefixLength:]
	)

	suffixes, err := c.Range.Range(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("breach range lookup: %w", err)
	}
	for _, s := range suffixes {
		if s.Hash == string(suffix) {
			return s.Count, nil
		}
	}
	return 0, nil
}
