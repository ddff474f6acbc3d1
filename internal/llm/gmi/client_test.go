package gmi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *ChatModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m, err := NewChatModel(Config{APIKey: "test-key", Endpoint: server.URL + "/v1/chat/completions", Model: "test-model"})
	require.NoError(t, err)
	return m
}

func TestNewChatModelRequiresCredential(t *testing.T) {
	_, err := NewChatModel(Config{APIKey: "   "})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestNewChatModelDefaults(t *testing.T) {
	m, err := NewChatModel(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, m.endpoint)
	assert.Equal(t, DefaultModel, m.model)
	assert.Equal(t, DefaultMaxTokens, m.maxTokens)
	assert.InDelta(t, 0.7, m.temperature, 1e-6)
}

func TestNewChatModelKeepsZeroTemperature(t *testing.T) {
	zero := float32(0)
	m, err := NewChatModel(Config{APIKey: "k", Temperature: &zero})
	require.NoError(t, err)
	assert.Zero(t, m.temperature)
}

func TestGenerateSendsContract(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var req chatRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 150, req.MaxTokens)
		assert.InDelta(t, 0.3, req.Temperature, 1e-6)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "Why?", req.Messages[1].Content)
		}
		assert.Contains(t, string(body), `"stream":false`)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  Because.  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	})

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("You are A."),
		schema.UserMessage("Why?"),
	}, model.WithTemperature(0.3), model.WithMaxTokens(150))
	require.NoError(t, err)
	assert.Equal(t, "  Because.  ", msg.Content)
	assert.Equal(t, schema.Assistant, msg.Role)
	require.NotNil(t, msg.ResponseMeta)
	assert.Equal(t, "stop", msg.ResponseMeta.FinishReason)
	require.NotNil(t, msg.ResponseMeta.Usage)
	assert.Equal(t, 15, msg.ResponseMeta.Usage.TotalTokens)
}

func TestGenerateNoChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.ErrorIs(t, err, ErrNoChoices)
}

func TestGenerateErrorPayloads(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		payload string
	}{
		{name: "object", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid api key","type":"auth"}}`, payload: "invalid api key"},
		{name: "string", status: http.StatusBadRequest, body: `{"error":"model not found"}`, payload: "model not found"},
		{name: "raw", status: http.StatusBadGateway, body: "upstream unavailable\n", payload: "upstream unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			})

			_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.payload, apiErr.Payload)
		})
	}
}

func TestGenerateDoesNotRetry(t *testing.T) {
	var count atomic.Int32
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.EqualValues(t, 1, count.Load())
}

func TestGenerateTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := server.URL
	server.Close()

	m, err := NewChatModel(Config{APIKey: "k", Endpoint: endpoint})
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestStreamReturnsSingleChunk(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})

	stream, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ok", chunk.Content)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBindToolsUnsupported(t *testing.T) {
	m, err := NewChatModel(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.ErrorIs(t, m.BindTools(nil), ErrToolsUnsupported)
}
