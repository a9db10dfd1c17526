package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// AuthToken is the context key for the bearer credential attached to a
// request. For vault calls this is the authentication digest, never key
// material.
type AuthToken struct{}

func (c *client) Get(ctx context.Context, urlstr string, recv any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlstr, nil)
	if err != nil {
		return err
	}
	return c.DoWithBackoff(ctx, req, recv)
}

func (c *client) Post(ctx context.Context, urlstr string, recv, send any) error {
	return c.send(ctx, http.MethodPost, urlstr, recv, send)
}

func (c *client) Put(ctx context.Context, urlstr string, recv, send any) error {
	return c.send(ctx, http.MethodPut, urlstr, recv, send)
}

func (c *client) send(ctx context.Context, method, urlstr string, recv, send any) error {
	var (
		buffer  *bytes.Buffer = new(bytes.Buffer)
		request *http.Request
		err     error
	)

	if err = json.NewEncoder(buffer).Encode(send); err != nil {
		return err
	}

	if request, err = http.NewRequestWithContext(ctx, method, urlstr, nil); err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	// The body is replayed for each attempt
	body := buffer.Bytes()
	request.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	request.ContentLength = int64(len(body))
	return c.DoWithBackoff(ctx, request, recv)
}

func (c *client) DoWithBackoff(ctx context.Context, req *http.Request, recv any) error {
	var (
		initialInterval     = 500 * time.Millisecond
		randomizationFactor = 0.1
		multiplier          = 2.0
		maxInterval         = 5 * time.Second
	)
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.RandomizationFactor = randomizationFactor
	exp.Multiplier = multiplier
	exp.MaxInterval = maxInterval
	exp.MaxElapsedTime = c.maxElapsed

	exp.Reset()
	f := func() error {
		return c.Do(ctx, req, recv)
	}

	notify := func(err error, d time.Duration) {
		log.Warn().Err(err).Dur("backoff", d).Str("url", req.URL.Path).Msg("retrying request")
	}

	return backoff.RetryNotifyWithTimer(f, backoff.WithContext(exp, ctx), notify, nil)
}

// Do sends a single request. A *[]byte receiver gets the raw body, anything
// else is decoded as JSON. A nil receiver discards the body.
func (c *client) Do(ctx context.Context, req *http.Request, recv any) error {
	if token, ok := ctx.Value(AuthToken{}).(string); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Body = body
	}

	var (
		response *http.Response
		err      error
		body     []byte
	)
	if response, err = c.Client.Do(req); err != nil {
		return err
	}

	defer response.Body.Close()
	if body, err = io.ReadAll(response.Body); err != nil {
		return err
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return StatusError(response.StatusCode, body)
	}

	return decode(body, recv)
}

func decode(body []byte, recv any) error {
	switch r := recv.(type) {
	case nil:
		return nil
	case *[]byte:
		*r = body
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, recv); err != nil {
		return backoff.Permanent(err)
	}
	return nil
}
