/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imposter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// WordSource supplies the secret word for a round from a free-text theme.
// It never fails: a degraded upstream falls back to a fixed offline pool so
// the game stays startable.
type WordSource interface {
	Word(ctx context.Context, theme string) string
}

// fallbackWords is the offline pool used whenever the upstream word service
// is unavailable, slow, or returns garbage.
var fallbackWords = []string{
	"nebula", "dragon", "castle", "treasure",
	"phoenix", "wizard", "ocean", "mountain",
}

func fallbackWord() string {
	return fallbackWords[rand.IntN(len(fallbackWords))]
}

// StaticWords serves words from a fixed list, round-robin. The zero value
// serves the fallback pool. Used by tests and by deployments without an
// API key.
type StaticWords struct {
	Words []string
	next  int
}

func (s *StaticWords) Word(_ context.Context, _ string) string {
	if len(s.Words) == 0 {
		return fallbackWord()
	}
	w := s.Words[s.next%len(s.Words)]
	s.next++
	return w
}

const wordSystemPrompt = "You are a word game assistant. Generate a single simple English word " +
	"(2-3 syllables, common noun) based on the given genre or theme. Respond with ONLY the word, nothing else."

// DefaultWordAPIURL is the OpenAI-compatible endpoint queried for words.
const DefaultWordAPIURL = "https://api.openai.com/v1"

// APIWords asks an OpenAI-compatible chat completions endpoint for a theme
// word. Every failure path, including timeout, resolves to the fallback
// pool rather than an error.
type APIWords struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *APIWords) Word(ctx context.Context, theme string) string {
	word, err := a.fetch(ctx, theme)
	if err != nil {
		return fallbackWord()
	}
	return word
}

func (a *APIWords) fetch(ctx context.Context, theme string) (string, error) {
	if a.APIKey == "" {
		return "", fmt.Errorf("no api key configured")
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: a.Model,
		Messages: []chatMessage{
			{Role: "system", Content: wordSystemPrompt},
			{Role: "user", Content: "Generate a word for this theme: " + theme},
		},
		Temperature: 0.7,
		MaxTokens:   10,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	base := a.BaseURL
	if base == "" {
		base = DefaultWordAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(base, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call word service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("word service returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	word := strings.ToLower(strings.TrimSpace(parsed.Choices[0].Message.Content))
	// Models occasionally editorialize; keep the first token only.
	if fields := strings.Fields(word); len(fields) > 0 {
		word = fields[0]
	}
	word = strings.Trim(word, `."'!`)
	if word == "" {
		return "", fmt.Errorf("blank word")
	}
	return word, nil
}
