package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DNABoe/jetmonitor/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ClassifierConfig{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Model:    "test-model",
	})
}

func completionResponse(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return body
}

func TestClassifyValidResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Gripen, Rafale, F-35")

		w.Write(completionResponse(`{"sentiment": 0.6, "tags": ["Gripen", "F-35"], "title_en": "Sweden offers Gripen deal"}`))
	})

	result, err := client.Classify(context.Background(), "Zweden biedt Gripen-deal aan", []string{"Gripen", "Rafale", "F-35"})
	require.NoError(t, err)
	assert.Equal(t, 0.6, result.Sentiment)
	assert.Equal(t, []string{"Gripen", "F-35"}, result.Tags)
	assert.Equal(t, "Sweden offers Gripen deal", result.TitleEN)
}

func TestClassifyFiltersUntrackedTags(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionResponse(`{"sentiment": -0.2, "tags": ["gripen", "Eurofighter", "Gripen"], "title_en": ""}`))
	})

	result, err := client.Classify(context.Background(), "text", []string{"Gripen", "Rafale"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Gripen"}, result.Tags, "untracked tags dropped, case folded to tracked form, duplicates removed")
}

func TestClassifyTruncatesOnRuneBoundary(t *testing.T) {
	var prompt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Messages[1].Content
		w.Write(completionResponse(`{"sentiment": 0, "tags": [], "title_en": ""}`))
	})

	// Place a two-byte rune straddling the byte cutoff.
	text := strings.Repeat("a", maxInputChars-1) + "ä"
	_, err := client.Classify(context.Background(), text, nil)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(prompt), "truncation must not split a multi-byte rune")
	assert.NotContains(t, prompt, "�")
}

func TestClassifyQuotaExceeded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result, err := client.Classify(context.Background(), "text", nil)
	require.ErrorIs(t, err, ErrQuota)
	assert.Equal(t, Neutral(), result)
}

func TestClassifyMalformedPayload(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "the article is positive"},
		{"missing sentiment", `{"tags": []}`},
		{"sentiment out of range", `{"sentiment": 3.5, "tags": []}`},
		{"non-string tag", `{"sentiment": 0, "tags": [42]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write(completionResponse(tc.content))
			})

			result, err := client.Classify(context.Background(), "text", []string{"Gripen"})
			require.Error(t, err)
			assert.Equal(t, Neutral(), result)
		})
	}
}

func TestClassifyStripsCodeFence(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionResponse("```json\n{\"sentiment\": 0.1, \"tags\": []}\n```"))
	})

	result, err := client.Classify(context.Background(), "text", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.1, result.Sentiment)
}

func TestClassifyNotConfigured(t *testing.T) {
	client := NewClient(config.ClassifierConfig{})
	assert.False(t, client.Configured())

	_, err := client.Classify(context.Background(), "text", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
