package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-animator-be/pkg/llm"
)

func TestChatParsesCompletionAndUsage(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "print(1)"}},
			},
			"usage": map[string]int{
				"prompt_tokens":     12,
				"completion_tokens": 34,
				"total_tokens":      46,
			},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("default-key", server.URL, "gpt-4o-mini")
	res, err := p.Complete(context.Background(), "system", "user",
		llm.WithTemperature(0.3), llm.WithMaxTokens(500))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if res.Text != "print(1)" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.PromptTokens != 12 || res.CompletionTokens != 34 || res.TotalTokens != 46 {
		t.Errorf("usage = %+v", res)
	}
	if res.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", res.Model)
	}
	if gotAuth != "Bearer default-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["temperature"] != 0.3 {
		t.Errorf("temperature = %v", gotBody["temperature"])
	}

	msgs, ok := gotBody["messages"].([]interface{})
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	first := msgs[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != "system" {
		t.Errorf("system message = %v", first)
	}
}

func TestChatPerCallAPIKeyOverride(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("default-key", server.URL, "gpt-4o-mini")
	if _, err := p.Complete(context.Background(), "s", "u", llm.WithAPIKey("user-key")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer user-key" {
		t.Errorf("Authorization = %q, want per-call key", gotAuth)
	}
}

func TestChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("key", server.URL, "gpt-4o-mini")
	if _, err := p.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	p := NewOpenAIProvider("key", server.URL, "gpt-4o-mini")
	if _, err := p.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}
