package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/formatexp/formatexp/pkg/credits"
)

func testRequest() credits.GenerationRequest {
	return credits.GenerationRequest{
		Type:       credits.MaterialTest,
		SourceText: strings.Repeat("Cells are the basic unit of life. ", 3),
		Difficulty: credits.DifficultyMedium,
		Questions:  5,
		Title:      "Biology",
	}
}

func TestGenerate_Success(t *testing.T) {
	var gotAuth string
	var gotBody responsesRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q, want /responses", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"output": []map[string]interface{}{
				{
					"type": "message",
					"content": []map[string]interface{}{
						{"type": "output_text", "text": "Question 1: ..."},
						{"type": "output_text", "text": " Question 2: ..."},
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	out, err := client.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "Question 1: ... Question 2: ..." {
		t.Errorf("output = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != defaultModel {
		t.Errorf("model = %q, want %q", gotBody.Model, defaultModel)
	}
	if len(gotBody.Input) != 2 || gotBody.Input[0].Role != "system" || gotBody.Input[1].Role != "user" {
		t.Errorf("input messages = %+v", gotBody.Input)
	}
	if !strings.Contains(gotBody.Input[1].Content, "5 questions") {
		t.Errorf("user prompt missing question count: %q", gotBody.Input[1].Content)
	}
}

func TestGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "rate limited"},
		})
	}))
	defer server.Close()

	client, _ := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), testRequest())
	if !errors.Is(err, credits.ErrProviderUnavailable) {
		t.Fatalf("Expected ErrProviderUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Error should carry the API message: %v", err)
	}
}

func TestGenerate_EmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"output": []interface{}{}})
	}))
	defer server.Close()

	client, _ := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), testRequest())
	if !errors.Is(err, credits.ErrProviderUnavailable) {
		t.Fatalf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, _ := NewClient(Config{
		APIKey:     "sk-test",
		BaseURL:    server.URL,
		HTTPClient: &http.Client{Timeout: 20 * time.Millisecond},
	})
	_, err := client.Generate(context.Background(), testRequest())
	if !errors.Is(err, credits.ErrProviderUnavailable) {
		t.Fatalf("Expected ErrProviderUnavailable on timeout, got %v", err)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, credits.ErrProviderUnavailable) {
		t.Fatalf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		typ  credits.MaterialType
		want string
	}{
		{credits.MaterialTest, "Create a test"},
		{credits.MaterialSummary, "Create a didactic summary"},
		{credits.MaterialStudyGuide, "Create a study guide"},
		{credits.MaterialPresentation, "Create a study guide"}, // fallback layout
	}

	for _, tt := range tests {
		req := testRequest()
		req.Type = tt.typ
		prompt := BuildPrompt(req)
		if !strings.Contains(prompt, tt.want) {
			t.Errorf("BuildPrompt(%s) missing %q", tt.typ, tt.want)
		}
		if !strings.Contains(prompt, req.SourceText) {
			t.Errorf("BuildPrompt(%s) missing source text", tt.typ)
		}
	}
}
