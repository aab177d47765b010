// Package classifier delegates sentiment scoring and competitor tagging to an
// external text-classification service. The response is treated as an
// untrusted payload validated against a fixed schema; anything that does not
// fit resolves to neutral defaults at the call site.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DNABoe/jetmonitor/internal/config"
)

const (
	classifyTimeout = 60 * time.Second
	maxInputChars   = 8000
)

// ErrQuota marks a rate-limit or exhausted-credit response from the service.
// Callers degrade to neutral defaults either way but report quota errors
// distinctly.
var ErrQuota = errors.New("classifier: quota or rate limit exceeded")

// ErrNotConfigured marks missing service credentials. This is fatal for a
// collection run, unlike per-item classification failures.
var ErrNotConfigured = errors.New("classifier: service credentials not configured")

// Result is the validated classification outcome for one item.
type Result struct {
	Sentiment float64  `json:"sentiment"`
	Tags      []string `json:"tags"`
	TitleEN   string   `json:"title_en,omitempty"`
}

// Neutral returns the safe default used when classification fails: neutral
// sentiment and no competitor tags.
func Neutral() Result {
	return Result{Sentiment: 0, Tags: []string{}}
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a classifier client from configuration.
func NewClient(cfg config.ClassifierConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: classifyTimeout,
		},
	}
}

// Configured reports whether the client has usable credentials.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != "" && c.apiKey != "" && c.model != ""
}

const classifySystemPrompt = `You analyze media coverage of fighter-jet procurement candidates.
You receive article text and a list of tracked competitor names.
Respond ONLY with a JSON object, no prose, matching exactly:
{"sentiment": <number between -1 and 1>, "tags": [<tracked competitor names mentioned>], "title_en": "<English translation of the title>"}
Rules:
- sentiment reflects the article's tone toward the discussed candidates (-1 very negative, 0 neutral, 1 very positive)
- tags may ONLY contain names from the tracked list, and may be empty
- title_en is the first line of the input translated to English`

// Classify sends item text to the classification service and validates the
// response. tags in the result are always a subset of trackedTags. Any
// transport error, non-2xx status, or schema violation is returned as an
// error; the caller stores the item with Neutral() instead of failing the
// run.
func (c *Client) Classify(ctx context.Context, text string, trackedTags []string) (Result, error) {
	if !c.Configured() {
		return Neutral(), ErrNotConfigured
	}

	if len(text) > maxInputChars {
		// Back up to a rune boundary so truncation never sends the
		// encoder a split multi-byte character.
		cut := maxInputChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	userPrompt := fmt.Sprintf("Tracked competitors: %s\n\n%s", strings.Join(trackedTags, ", "), text)
	raw, err := c.complete(ctx, classifySystemPrompt, userPrompt)
	if err != nil {
		return Neutral(), err
	}

	result, err := parseResult(raw, trackedTags)
	if err != nil {
		return Neutral(), err
	}
	return result, nil
}

// Complete performs a raw completion with a custom system prompt. Used by the
// outlet discovery collaborator, which shares the service contract.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	return c.complete(ctx, systemPrompt, userPrompt)
}

// chatRequest is the JSON body sent to the chat-completions endpoint.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired {
		return "", fmt.Errorf("%w: status %d", ErrQuota, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("classifier: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("classifier: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("classifier: empty choices in response")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("classifier: empty completion")
	}
	return content, nil
}

// parseResult validates the model output against the fixed schema: sentiment
// must be numeric within [-1, 1] and tags must be strings. Tags outside the
// tracked set are dropped rather than failing the whole result.
func parseResult(raw string, trackedTags []string) (Result, error) {
	raw = stripCodeFence(raw)

	var payload struct {
		Sentiment *float64 `json:"sentiment"`
		Tags      []any    `json:"tags"`
		TitleEN   string   `json:"title_en"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, fmt.Errorf("classifier: malformed payload: %w", err)
	}
	if payload.Sentiment == nil {
		return Result{}, errors.New("classifier: payload missing sentiment")
	}
	if *payload.Sentiment < -1 || *payload.Sentiment > 1 {
		return Result{}, fmt.Errorf("classifier: sentiment %v out of range", *payload.Sentiment)
	}

	tracked := make(map[string]string, len(trackedTags))
	for _, tag := range trackedTags {
		tracked[strings.ToLower(tag)] = tag
	}

	tags := []string{}
	seen := make(map[string]bool)
	for _, v := range payload.Tags {
		s, ok := v.(string)
		if !ok {
			return Result{}, errors.New("classifier: non-string tag in payload")
		}
		canonical, ok := tracked[strings.ToLower(strings.TrimSpace(s))]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		tags = append(tags, canonical)
	}

	return Result{
		Sentiment: *payload.Sentiment,
		Tags:      tags,
		TitleEN:   strings.TrimSpace(payload.TitleEN),
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence some models emit
// despite the JSON response format.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
