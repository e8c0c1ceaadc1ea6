package translit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnavailable = errors.New("transliteration service unavailable")
	ErrBadResponse = errors.New("malformed transliteration response")
)

type Request struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type Response struct {
	Original string `json:"original"`
	Romaji   string `json:"romaji"`
}

// BatchResult is one entry of the batch endpoint's ordered response.
type BatchResult struct {
	Original string `json:"original"`
	Romaji   string `json:"romaji"`
	Method   string `json:"method"`
}

// Client talks to the remote romanization server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("transliteration url is empty")
	}

	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid transliteration url %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid transliteration url %q: unsupported scheme", baseURL)
	}

	return &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     60 * time.Second,
			},
			Timeout: timeout,
		},
	}, nil
}

// Convert sends one line with song context and returns the converted text.
func (c *Client) Convert(ctx context.Context, text string, title string, artist string) (string, error) {
	var resp Response
	err := c.post(ctx, "convert", Request{Text: text, Title: title, Artist: artist}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Romaji, nil
}

// ConvertBatch sends an ordered list of lines and returns a parallel ordered list.
func (c *Client) ConvertBatch(ctx context.Context, lines []string) ([]BatchResult, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	var results []BatchResult
	err := c.post(ctx, "convert-batch", lines, &results)
	if err != nil {
		return nil, err
	}

	if len(results) != len(lines) {
		return nil, fmt.Errorf("%w: got %d results for %d lines", ErrBadResponse, len(results), len(lines))
	}

	return results, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(endpoint).String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return nil
}
