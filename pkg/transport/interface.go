package transport

import (
	"context"
	"net/http"
	"time"
)

type HttpClient interface {
	Get(ctx context.Context, urlstr string, recv any) error
	Post(ctx context.Context, urlstr string, recv, send any) error
	Put(ctx context.Context, urlstr string, recv, send any) error
	DoWithBackoff(ctx context.Context, req *http.Request, recv any) error
}

type client struct {
	*http.Client
	maxElapsed time.Duration
}

var c client = client{
	Client: &http.Client{
		Timeout: 10 * time.Second,
	},
	maxElapsed: 2 * time.Minute,
}

var DefaultHttpClient HttpClient = &c

// NewClient returns a client with its own timeout. Retries give up once
// maxElapsed has passed.
func NewClient(timeout, maxElapsed time.Duration) HttpClient {
	return &client{
		Client:     &http.Client{Timeout: timeout},
		maxElapsed: maxElapsed,
	}
}
