// Package fetch downloads source pages for the extraction pipeline. The
// client is bounded in every direction: request timeout, redirect hops and
// response body size.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"readlater/internal/domain"
)

type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	UserAgent    string
}

type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	maxHops := cfg.MaxRedirects

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxHops {
					return fmt.Errorf("stopped after %d redirects", maxHops)
				}
				return nil
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger.With("component", "fetch"),
	}
}

// Page retrieves the raw HTML of url, decoded to UTF-8 using the response's
// declared charset. Network failures wrap domain.ErrFetchFailed; deadline
// overruns wrap domain.ErrFetchTimeout.
func (c *Client) Page(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrFetchFailed, resp.StatusCode)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}

	body, err := readLimited(reader, c.maxBodyBytes)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	c.logger.Debug("fetched page", "url", url, "bytes", len(body))

	return body, nil
}

// readLimited reads at most limit bytes from r and fails when the body is
// larger, so one oversized page cannot exhaust memory.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
