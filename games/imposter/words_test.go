package imposter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func inFallbackPool(word string) bool {
	for _, w := range fallbackWords {
		if w == word {
			return true
		}
	}
	return false
}

func TestStaticWordsRoundRobin(t *testing.T) {
	s := &StaticWords{Words: []string{"nebula", "dragon"}}
	ctx := context.Background()

	got := []string{s.Word(ctx, ""), s.Word(ctx, ""), s.Word(ctx, "")}
	want := []string{"nebula", "dragon", "nebula"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStaticWordsZeroValueServesFallback(t *testing.T) {
	var s StaticWords
	if word := s.Word(context.Background(), "space"); !inFallbackPool(word) {
		t.Fatalf("got %q, expected a fallback word", word)
	}
}

func chatReply(word string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": word}},
		},
	})
	return body
}

func TestAPIWordsSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(chatReply("  Glacier.  "))
	}))
	defer srv.Close()

	a := &APIWords{APIKey: "test-key", Model: "gpt-4o-mini", BaseURL: srv.URL}
	word := a.Word(context.Background(), "winter")

	if word != "glacier" {
		t.Fatalf("expected trimmed lowercase word, got %q", word)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "Generate a word for this theme: winter" {
		t.Fatalf("unexpected messages %+v", gotReq.Messages)
	}
}

// Models sometimes answer with a sentence; only the first token counts.
func TestAPIWordsKeepsFirstToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(chatReply("Volcano is a great word!"))
	}))
	defer srv.Close()

	a := &APIWords{APIKey: "test-key", BaseURL: srv.URL}
	if word := a.Word(context.Background(), "geology"); word != "volcano" {
		t.Fatalf("expected %q, got %q", "volcano", word)
	}
}

func TestAPIWordsFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream down", http.StatusBadGateway)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
		},
		{
			name: "blank word",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write(chatReply("   "))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := &APIWords{APIKey: "test-key", BaseURL: srv.URL}
			if word := a.Word(context.Background(), "space"); !inFallbackPool(word) {
				t.Fatalf("got %q, expected a fallback word", word)
			}
		})
	}
}

func TestAPIWordsTimeoutFallsBack(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write(chatReply("late"))
	}))
	defer srv.Close()
	defer close(release)

	a := &APIWords{APIKey: "test-key", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}
	if word := a.Word(context.Background(), "space"); !inFallbackPool(word) {
		t.Fatalf("got %q, expected a fallback word on timeout", word)
	}
}

func TestAPIWordsNoKeyFallsBack(t *testing.T) {
	a := &APIWords{}
	if word := a.Word(context.Background(), "space"); !inFallbackPool(word) {
		t.Fatalf("got %q, expected a fallback word without an api key", word)
	}
}
