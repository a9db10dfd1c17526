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
package transport

import (
	"fmt"
	"net/http"

	backoff "github.com/cenkalti/backoff/v4"
)

type ErrBase struct {
	Code int
	Body []byte
}

type ErrStatusCode ErrBase

func (e *ErrStatusCode) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrBadRequest ErrBase

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrUnauthorized ErrBase

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrForbidden ErrBase

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrNotFound ErrBase

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrConflict ErrBase

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

// ErrGone is returned for resources that existed once and have been
// removed, such as a share that was already retrieved.
type ErrGone ErrBase

func (e *ErrGone) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrTooManyRequests ErrBase

func (e *ErrTooManyRequests) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrInternal ErrBase

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

type ErrUnknown ErrBase

func (e *ErrUnknown) Error() string {
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Body)
}

// StatusError maps a non 2xx response to its typed error. Client errors
// are wrapped as permanent so they are never retried, with the exception of
// 429 which is worth waiting out.
func StatusError(code int, body []byte) error {
	var err error
	switch code {
	case http.StatusBadRequest:
		err = &ErrBadRequest{code, body}
	case http.StatusUnauthorized:
		err = &ErrUnauthorized{code, body}
	case http.StatusForbidden:
		err = &ErrForbidden{code, body}
	case http.StatusNotFound:
		err = &ErrNotFound{code, body}
	case http.StatusConflict:
		err = &ErrConflict{code, body}
	case http.StatusGone:
		err = &ErrGone{code, body}
	case http.StatusTooManyRequests:
		return &ErrTooManyRequests{code, body}
	case http.StatusInternalServerError:
		return &ErrInternal{code, body}
	default:
		if code >= 500 {
			return &ErrStatusCode{code, body}
		}
		err = &ErrUnknown{code, body}
	}
	return backoff.Permanent(err)
}
