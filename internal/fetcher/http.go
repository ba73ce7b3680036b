package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RateLimit throttles requests so dump hosts are fetched politely.
	RateLimit rate.Limit
}

// HTTPFetcher downloads dumps over HTTP with retry and rate limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 2
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, 1),
	}
}

// Open fetches the URL and returns the response body. Retries transient
// status codes with a short linear backoff.
func (f *HTTPFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: build request for %s", url)
		}
		if f.opts.UserAgent != "" {
			req.Header.Set("User-Agent", f.opts.UserAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = eris.Wrapf(err, "fetcher: GET %s", url)
		} else if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			lastErr = eris.Errorf("fetcher: GET %s returned %d", url, resp.StatusCode)
		} else if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, eris.Errorf("fetcher: GET %s returned %d", url, resp.StatusCode)
		} else {
			return resp.Body, nil
		}

		if attempt < f.opts.MaxRetries {
			zap.L().Warn("fetcher: retrying download",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "fetcher: cancelled during backoff")
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}

	return nil, lastErr
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
