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
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/notapipeline/zkv/pkg/types"
)

const linkPrefix = "/s/"

type InvalidLinkError struct {
	Reason string
}

func (e InvalidLinkError) Error() string {
	return fmt.Sprintf("invalid share link: %s", e.Reason)
}

// BuildLink returns <base>/s/<id>#<base64url key>
func BuildLink(base, id string, key []byte) string {
	return strings.TrimRight(base, "/") + linkPrefix + url.PathEscape(id) +
		"#" + base64.RawURLEncoding.EncodeToString(key)
}

// ParseLink splits a share link into the id sent to the server and the
// key that stays local.
func ParseLink(link string) (id string, key []byte, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", nil, InvalidLinkError{Reason: "not a url"}
	}

	i := strings.LastIndex(u.Path, linkPrefix)
	if i < 0 {
		return "", nil, InvalidLinkError{Reason: "missing share path"}
	}
	if id = u.Path[i+len(linkPrefix):]; id == "" || strings.Contains(id, "/") {
		return "", nil, InvalidLinkError{Reason: "missing share id"}
	}

	if u.Fragment == "" {
		return "", nil, InvalidLinkError{Reason: "missing key"}
	}
	if key, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(u.Fragment, "=")); err != nil {
		return "", nil, InvalidLinkError{Reason: "key is not base64url"}
	}
	if len(key) != types.KeySize {
		return "", nil, InvalidLinkError{Reason: fmt.Sprintf("key must be %d bytes", types.KeySize)}
	}
	return id, key, nil
}
