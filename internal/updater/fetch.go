package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxFeedBytes bounds one fetched document.
const maxFeedBytes = 64 << 20

var ErrFeedTooLarge = errors.New("feed too large")

// HTTPClient is the part of *http.Client the fetcher uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves a feed document. Errors abort the cycle before any
// state is touched.
type Fetcher struct {
	URL     string
	Client  HTTPClient
	Retries int
	// MaxBytes bounds the body. Zero means 64 MiB.
	MaxBytes int64
	// Backoff between retries. Defaults to an exponential policy.
	Backoff func() backoff.BackOff
}

// NewFetcher returns a fetcher whose client times out after timeout.
func NewFetcher(rawURL string, timeout time.Duration, retries int) *Fetcher {
	return &Fetcher{
		URL:     rawURL,
		Client:  &http.Client{Timeout: timeout},
		Retries: retries,
	}
}

// Fetch returns the document body. file:// URLs are read from disk.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(f.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if u.Scheme == "file" {
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
		}
		return data, nil
	}

	var policy backoff.BackOff
	if f.Backoff != nil {
		policy = f.Backoff()
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 500 * time.Millisecond
		exp.MaxElapsedTime = 0
		policy = exp
	}
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.Retries)), ctx)

	var body []byte
	err = backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		b, err := f.fetchOnce(ctx)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.URL, err)
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("unexpected status %s", resp.Status)
		// Client errors will not fix themselves within one cycle.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = maxFeedBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, backoff.Permanent(fmt.Errorf("%w: exceeds %d bytes", ErrFeedTooLarge, limit))
	}
	return body, nil
}
