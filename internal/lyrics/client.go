package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const userAgent = "lyricast/1.0 (https://karolbroda.com/lyricast)"

// Searcher issues remote lyric lookups by track and artist name.
type Searcher interface {
	Search(ctx context.Context, title string, artist string) ([]Candidate, error)
}

// ExactMatcher is implemented by searchers with a cheaper exact-match endpoint.
type ExactMatcher interface {
	Get(ctx context.Context, title string, artist string, durationSecs int64) (Candidate, error)
}

// Client talks to an lrclib-compatible API. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("lrclib base url is empty")
	}

	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid lrclib url %q: unsupported scheme", baseURL)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

func (c *Client) Search(ctx context.Context, title string, artist string) ([]Candidate, error) {
	title = normalizeString(title)
	artist = normalizeString(artist)
	if title == "" {
		return nil, errors.New("track title is empty")
	}

	query := url.Values{}
	query.Set("track_name", title)
	if artist != "" {
		query.Set("artist_name", artist)
	}

	body, err := c.do(ctx, "search", query)
	if err != nil {
		return nil, err
	}

	var results []Candidate
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: failed to decode lrclib search json: %v", ErrParse, err)
	}

	return results, nil
}

func (c *Client) Get(ctx context.Context, title string, artist string, durationSecs int64) (Candidate, error) {
	title = normalizeString(title)
	artist = normalizeString(artist)
	if title == "" || artist == "" {
		return Candidate{}, errors.New("track title or artist is empty")
	}

	query := url.Values{}
	query.Set("track_name", title)
	query.Set("artist_name", artist)
	if durationSecs > 0 {
		query.Set("duration", strconv.FormatInt(durationSecs, 10))
	}

	body, err := c.do(ctx, "get", query)
	if err != nil {
		return Candidate{}, err
	}

	var result Candidate
	if err := json.Unmarshal(body, &result); err != nil {
		return Candidate{}, fmt.Errorf("%w: failed to decode lrclib json: %v", ErrParse, err)
	}

	return result, nil
}

func (c *Client) do(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	requestURL := c.baseURL.JoinPath(endpoint)
	requestURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: lrclib returned status %d: %s", ErrNetwork, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: failed to read lrclib response: %v", ErrNetwork, err)
	}

	return body, nil
}

// normalizeString trims and collapses runs of spaces for better matching
func normalizeString(s string) string {
	s = strings.TrimSpace(s)

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}

	return s
}
