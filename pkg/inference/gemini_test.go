package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

func geminiResponse(texts ...string) string {
	type p struct {
		Text string `json:"text"`
	}
	parts := make([]p, len(texts))
	for i, t := range texts {
		parts[i] = p{Text: t}
	}
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiResponse("## Summary\n", "body text")))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.5-flash", &GeminiOptions{Endpoint: srv.URL})
	out, err := c.Generate(context.Background(), Request{
		Prompt: "Summarize this meeting",
		Audio:  &Attachment{MIMEType: "audio/webm", Data: []byte("fake-audio")},
	})
	require.NoError(t, err)

	assert.Equal(t, "## Summary\nbody text", out)
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)

	// Prompt text and inline audio both land in the request payload.
	contents := gotBody["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "Summarize this meeting", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "audio/webm", inline["mimeType"])
	assert.NotEmpty(t, inline["data"])
}

func TestGeminiClient_QuotaErrorClassifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for model","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.5-flash", &GeminiOptions{Endpoint: srv.URL})
	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)

	classified := cverrors.Classify(err, "summarize")
	assert.Equal(t, cverrors.ErrCodeQuotaExceeded, classified.Code)
}

func TestGeminiClient_TimeoutClassifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(geminiResponse("late")))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.5-flash", &GeminiOptions{Endpoint: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, Request{Prompt: "hi"})
	require.Error(t, err)

	classified := cverrors.Classify(err, "summarize")
	assert.Equal(t, cverrors.ErrCodeTimeout, classified.Code)
}

func TestGeminiClient_EmptyCandidatesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.5-flash", &GeminiOptions{Endpoint: srv.URL})
	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, cverrors.IsMalformedResponse(err))
}

func TestGeminiClient_InvalidJSONIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := NewGeminiClient("test-key", "gemini-2.5-flash", &GeminiOptions{Endpoint: srv.URL})
	_, err := c.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, cverrors.IsMalformedResponse(err))
}

func TestFakeClient_Script(t *testing.T) {
	f := NewFakeClient("first", "second")

	out, err := f.Generate(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = f.Generate(context.Background(), Request{Prompt: "b"})
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	// Last step repeats.
	out, err = f.Generate(context.Background(), Request{Prompt: "c"})
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	assert.Len(t, f.Calls(), 3)
}

func TestFakeClient_FailWith(t *testing.T) {
	f := NewFakeClient("recovered").FailWith(context.DeadlineExceeded)

	_, err := f.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	out, err := f.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
}
