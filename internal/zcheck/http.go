package zcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

var zLine = regexp.MustCompile(`The Z Score for \S+ is (\S+)`)

// Client asks the service for Z-scores.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Healthy checks that /healthz answers 200.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// ZScore requests the Z-score for one case and returns it with the HTTP status.
func (c *Client) ZScore(ctx context.Context, tc Case) (float64, int, error) {
	q := url.Values{}
	q.Set("attribute", string(tc.Attribute))
	q.Set("agemos", tc.Key.AgeMonths)
	q.Set("sex", string(tc.Key.Sex))
	q.Set(string(tc.Attribute), strconv.FormatFloat(tc.X, 'g', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/zscore?"+q.Encode(), http.NoBody)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	m := zLine.FindSubmatch(body)
	if m == nil {
		return 0, resp.StatusCode, fmt.Errorf("%w: %q", ErrUnexpectedBody, body)
	}
	z, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, resp.StatusCode, fmt.Errorf("%w: %q", ErrUnexpectedBody, m[1])
	}
	return z, resp.StatusCode, nil
}
