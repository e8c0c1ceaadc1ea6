package translit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, 2*time.Second)
	require.NoError(t, err)
	return client
}

func TestClientConvert(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/convert", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, Request{Text: "夜", Title: "Song", Artist: "Band"}, req)

		_ = json.NewEncoder(w).Encode(Response{Original: req.Text, Romaji: "yoru"})
	})

	got, err := client.Convert(context.Background(), "夜", "Song", "Band")

	require.NoError(t, err)
	assert.Equal(t, "yoru", got)
}

func TestClientConvertBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convert-batch", r.URL.Path)

		var lines []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lines))

		results := make([]BatchResult, len(lines))
		for i, line := range lines {
			results[i] = BatchResult{Original: line, Romaji: "r:" + line, Method: "test"}
		}
		_ = json.NewEncoder(w).Encode(results)
	})

	got, err := client.ConvertBatch(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r:a", got[0].Romaji)
	assert.Equal(t, "r:b", got[1].Romaji)
}

func TestClientConvertBatchSizeMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"original": "a", "romaji": "x"}]`))
	})

	_, err := client.ConvertBatch(context.Background(), []string{"a", "b"})

	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestClientConvertServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Convert(context.Background(), "夜", "", "")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("", time.Second)
	assert.Error(t, err)

	_, err = NewClient("localhost:8080", time.Second)
	assert.Error(t, err)
}
