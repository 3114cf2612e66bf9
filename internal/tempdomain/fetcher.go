package tempdomain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/themacn/trial-abuse-guard/internal/metrics"
)

const (
	// DefaultFetchTimeout bounds a single source download.
	DefaultFetchTimeout = 10 * time.Second

	maxSourceBytes = 32 << 20
	userAgent      = "trial-abuse-guard/" + SnapshotVersion
)

// SourceFetcher downloads domain lists from remote sources.
type SourceFetcher interface {
	// FetchAll returns the parsed list of every source that succeeded, keyed
	// by URL. Failed sources are absent from the result.
	FetchAll(ctx context.Context, urls []string) map[string][]string
}

// Fetcher is the HTTP implementation of SourceFetcher.
type Fetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   *zap.Logger
}

// NewFetcher returns a Fetcher. A nil client means a fresh http.Client;
// a non-positive timeout means DefaultFetchTimeout.
func NewFetcher(client *http.Client, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, timeout: timeout, maxBytes: maxSourceBytes, logger: logger}
}

// FetchAll downloads every source concurrently. Each download is bounded by
// the fetcher timeout and is not cancelled by ctx: once started it either
// completes or times out on its own. A failing source is logged and left
// out; it never fails the batch.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) map[string][]string {
	ctx = context.WithoutCancel(ctx)

	var (
		mu     sync.Mutex
		result = make(map[string][]string, len(urls))
		g      errgroup.Group
	)

	for _, src := range urls {
		g.Go(func() error {
			domains, err := f.fetchOne(ctx, src)
			if err != nil {
				metrics.TempDomainSourceFetches.WithLabelValues(src, "error").Inc()
				f.logger.Warn("temp domain source failed",
					zap.String("source", src), zap.Error(err))
				return nil
			}

			metrics.TempDomainSourceFetches.WithLabelValues(src, "ok").Inc()
			f.logger.Debug("temp domain source fetched",
				zap.String("source", src), zap.Int("domains", len(domains)))

			mu.Lock()
			result[src] = domains
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (f *Fetcher) fetchOne(ctx context.Context, src string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// a cut-off last line could still parse as a different domain
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, f.maxBytes)
	}

	domains, err := ParseList(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return domains, nil
}
