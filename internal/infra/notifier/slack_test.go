package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackSinkSendsBlockKitPayload(t *testing.T) {
	var received slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	sink := NewSlackSink(SlackConfig{WebhookURL: server.URL, Timeout: 5 * time.Second})
	err := sink.Send(context.Background(), "token expired", true)
	require.NoError(t, err)

	assert.Contains(t, received.Text, "Critical workflow error")
	require.Len(t, received.Blocks, 1)
	assert.Equal(t, "section", received.Blocks[0].Type)
	assert.Contains(t, received.Blocks[0].Text.Text, "token expired")
}

func TestSlackSinkDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer server.Close()

	sink := NewSlackSink(SlackConfig{WebhookURL: server.URL, Timeout: 5 * time.Second})
	err := sink.Send(context.Background(), "warning text", false)
	require.Error(t, err)

	var clientErr *ClientError
	assert.ErrorAs(t, err, &clientErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSlackSinkHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	sink := NewSlackSink(SlackConfig{WebhookURL: server.URL, Timeout: 5 * time.Second})

	start := time.Now()
	err := sink.Send(context.Background(), "warning text", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "must wait out Retry-After")
}

func TestRetryAfterDurationDefaults(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, time.Second, retryAfterDuration(resp))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfterDuration(resp))

	resp.Header.Set("Retry-After", "garbage")
	assert.Equal(t, time.Second, retryAfterDuration(resp))
}
