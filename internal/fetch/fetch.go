// Package fetch performs the GET requests behind every mirror lookup and
// reports failures as categorized errors.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout is used when Options.Timeout is zero.
	DefaultTimeout = 10 * time.Second
	// DefaultRetries is the number of extra attempts for transport and 5xx failures.
	DefaultRetries = 1
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "manifold/1.0"
	// MaxBodySize caps how much of a response is read.
	MaxBodySize = 128 << 20
)

// Options configures a single fetch.
type Options struct {
	// Authenticated attaches the bearer token.
	Authenticated bool
	// Token is the bearer token used when Authenticated is set.
	Token string
	// Accept overrides the Accept header.
	Accept string
	// Timeout bounds the whole call, retries included.
	Timeout time.Duration
}

// Binary is a raw response body with its declared content type.
type Binary struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves documents over the network.
type Fetcher interface {
	FetchText(ctx context.Context, url string, opts Options) (string, error)
	FetchBinary(ctx context.Context, url string, opts Options) (Binary, error)
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration
}

// NewHTTPFetcher creates a fetcher with the default client settings.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
		retries:   DefaultRetries,
		backoff:   500 * time.Millisecond,
	}
}

// FetchText performs a GET and returns the body as text.
func (f *HTTPFetcher) FetchText(ctx context.Context, url string, opts Options) (string, error) {
	if opts.Accept == "" {
		opts.Accept = "text/plain, */*"
	}
	bin, err := f.fetch(ctx, url, opts)
	if err != nil {
		return "", err
	}
	return string(bin.Data), nil
}

// FetchBinary performs a GET and returns the raw body and content type.
func (f *HTTPFetcher) FetchBinary(ctx context.Context, url string, opts Options) (Binary, error) {
	if opts.Accept == "" {
		opts.Accept = "application/octet-stream, */*"
	}
	return f.fetch(ctx, url, opts)
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string, opts Options) (Binary, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr *Error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: backoff, 2*backoff, ...
			wait := f.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Binary{}, transportError(url, ctx.Err())
			}
		}

		bin, err := f.fetchOnce(ctx, url, opts)
		if err == nil {
			return bin, nil
		}
		lastErr = err

		if !err.retryable() || ctx.Err() != nil {
			break
		}
	}
	return Binary{}, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string, opts Options) (Binary, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Binary{}, transportError(url, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", opts.Accept)
	if opts.Authenticated && opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Binary{}, transportError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return Binary{}, transportError(url, fmt.Errorf("read body: %w", err))
	}
	if len(body) > MaxBodySize {
		return Binary{}, transportError(url, fmt.Errorf("response exceeds %d bytes", MaxBodySize))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Binary{}, statusError(url, resp.StatusCode, strings.TrimSpace(string(bytes.ToValidUTF8(body, nil))))
	}

	return Binary{Data: body, ContentType: resp.Header.Get("Content-Type")}, nil
}
