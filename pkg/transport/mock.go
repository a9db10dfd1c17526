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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	backoff "github.com/cenkalti/backoff/v4"
)

type MockHttpResponse struct {
	Code int
	Body []byte
}

// MockRequest records a call made through MockHttpClient
type MockRequest struct {
	Method string
	URL    string
	Token  string
	Body   []byte
}

// MockHttpClient is a mock implementation of the HttpClient interface
// Useful for testing requests throughout the application
type MockHttpClient struct {
	mu        sync.Mutex
	Responses []MockHttpResponse
	Requests  []MockRequest
}

func (m *MockHttpClient) Get(ctx context.Context, urlstr string, recv any) error {
	return m.record(ctx, http.MethodGet, urlstr, nil, recv)
}

func (m *MockHttpClient) Post(ctx context.Context, urlstr string, recv, send any) error {
	return m.record(ctx, http.MethodPost, urlstr, send, recv)
}

func (m *MockHttpClient) Put(ctx context.Context, urlstr string, recv, send any) error {
	return m.record(ctx, http.MethodPut, urlstr, send, recv)
}

func (m *MockHttpClient) DoWithBackoff(ctx context.Context, req *http.Request, recv any) error {
	var urlstr, method string = "", http.MethodGet
	if req != nil {
		urlstr, method = req.URL.String(), req.Method
	}
	return m.record(ctx, method, urlstr, nil, recv)
}

func (m *MockHttpClient) record(ctx context.Context, method, urlstr string, send, recv any) error {
	var body []byte
	if send != nil {
		body, _ = json.Marshal(send)
	}
	token, _ := ctx.Value(AuthToken{}).(string)

	m.mu.Lock()
	m.Requests = append(m.Requests, MockRequest{
		Method: method,
		URL:    urlstr,
		Token:  token,
		Body:   body,
	})
	m.mu.Unlock()
	return m.Do(recv)
}

// Do pops the next queued response. Retryable codes are skipped the way
// DoWithBackoff would retry them.
func (m *MockHttpClient) Do(recv any) error {
	m.mu.Lock()
	if len(m.Responses) == 0 {
		m.mu.Unlock()
		return nil
	}
	response := m.Responses[0]
	m.Responses = m.Responses[1:]
	m.mu.Unlock()

	if response.Code < 200 || response.Code > 299 {
		err := StatusError(response.Code, response.Body)
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return m.Do(recv)
	}

	if err := decode(response.Body, recv); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}
