package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegateSendsAnnotatedText(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama3",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": " It is nine o'clock. "}}]
		}`))
	}))
	defer srv.Close()

	d := New(Config{BaseURL: srv.URL + "/v1"})
	reply, err := d.Delegate(context.Background(), "(System: Time is 21:00) what time is it")
	require.NoError(t, err)

	assert.Equal(t, "It is nine o'clock.", reply)
	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "(System: Time is 21:00) what time is it", got.Messages[1].Content)
}

func TestDelegateCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{BaseURL: srv.URL + "/v1"}).Delegate(ctx, "hello")
	assert.Error(t, err)
}
