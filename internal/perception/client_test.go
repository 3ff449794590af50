package perception

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosstab/internal/contracts"
)

type greeting struct {
	Message string `json:"message"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	return NewOpenAIClient(cfg, nil), srv
}

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 7},
	})
	require.NoError(t, err)
	return body
}

func TestStructuredCompleteDecodesJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Write(completionBody(t, `{"message":"hi"}`))
	})

	var out greeting
	trace, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Message)
	assert.Equal(t, 12, trace.PromptTokens)
	assert.Equal(t, 7, trace.CompletionTokens)
	assert.Equal(t, "gpt-4o-mini", trace.Model)
}

func TestStructuredCompleteStripsCodeFences(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionBody(t, "```json\n{\"message\":\"fenced\"}\n```"))
	})

	var out greeting
	_, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.NoError(t, err)
	assert.Equal(t, "fenced", out.Message)
}

func TestStructuredCompleteNoRetryOnMalformedReply(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write(completionBody(t, "this is not json"))
	})

	var out greeting
	_, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected shape")
	assert.Equal(t, int32(1), calls.Load(), "a malformed completion must not be retried")
}

func TestStructuredCompleteNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	var out greeting
	_, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), calls.Load())
}

func TestStructuredCompleteRunsContractValidation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write(completionBody(t, `{"intent_type":"nonsense","confidence":0.9,"reasoning":"x"}`))
	})

	var out contracts.UserIntent
	_, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract validation")
}

func TestStructuredCompleteAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model not found"},
		})
	})

	var out greeting
	_, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestStructuredCompleteMissingAPIKey(t *testing.T) {
	client := NewOpenAIClient(Config{BaseURL: "http://unused"}, nil)
	var out greeting
	_, err := client.StructuredComplete(context.Background(), "sys", "user", &out)
	require.Error(t, err)
}

func TestScriptedClient(t *testing.T) {
	sc := NewScriptedClient(`{"message":"one"}`)
	sc.FailWith(errors.New("boom"))

	var out greeting
	trace, err := sc.StructuredComplete(context.Background(), "a", "b", &out)
	require.NoError(t, err)
	assert.Equal(t, "one", out.Message)
	assert.Equal(t, "scripted", trace.Model)

	_, err = sc.StructuredComplete(context.Background(), "c", "d", &out)
	require.EqualError(t, err, "boom")

	_, err = sc.StructuredComplete(context.Background(), "e", "f", &out)
	require.Error(t, err, "script exhausted")

	calls := sc.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "a", calls[0].SystemPrompt)
	assert.Equal(t, "d", calls[1].UserPrompt)
}

func TestScriptedClientErrorStaysInQueueOrder(t *testing.T) {
	sc := NewScriptedClient(`{"message":"one"}`, `{"message":"two"}`)
	sc.FailWith(errors.New("third call fails"))
	sc.replies = append(sc.replies, `{"message":"four"}`)

	var out greeting
	for _, want := range []string{"one", "two"} {
		_, err := sc.StructuredComplete(context.Background(), "s", "u", &out)
		require.NoError(t, err)
		assert.Equal(t, want, out.Message)
	}

	_, err := sc.StructuredComplete(context.Background(), "s", "u", &out)
	require.EqualError(t, err, "third call fails")

	_, err = sc.StructuredComplete(context.Background(), "s", "u", &out)
	require.NoError(t, err)
	assert.Equal(t, "four", out.Message)
}
