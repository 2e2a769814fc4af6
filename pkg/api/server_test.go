package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/formatexp/formatexp/pkg/auth"
	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/storage/memory"
)

type stubProvider struct {
	output string
	err    error
}

func (s *stubProvider) Generate(context.Context, credits.GenerationRequest) (string, error) {
	return s.output, s.err
}

func setupServer(t *testing.T, provider credits.ContentProvider) (*Server, *memory.Storage) {
	t.Helper()

	storage := memory.New()
	gate, err := credits.NewGate(credits.GateConfig{
		Accounts:  storage,
		Materials: storage,
		Provider:  provider,
	})
	if err != nil {
		t.Fatalf("Failed to create gate: %v", err)
	}
	tokens, err := auth.NewTokenSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	server, err := NewServer(Config{
		Accounts:  storage,
		Materials: storage,
		Gate:      gate,
		Tokens:    tokens,
		Waitlist:  storage,
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return server, storage
}

func doJSON(t *testing.T, server *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, server *Server, email string) (token, accountID string) {
	t.Helper()

	rec := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"name":     "Test Teacher",
		"email":    email,
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode register response: %v", err)
	}
	return resp.Token, resp.Account.ID
}

func sourceText() string {
	return strings.Repeat("The French Revolution reshaped European politics. ", 4)
}

func TestRegisterAndLogin(t *testing.T) {
	server, _ := setupServer(t, &stubProvider{output: "out"})

	token, _ := registerUser(t, server, "new@example.com")
	if token == "" {
		t.Fatal("Expected a session token from registration")
	}

	t.Run("duplicate email", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"name":     "Other",
			"email":    "new@example.com",
			"password": "secret123",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("short password", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
			"name":     "Short",
			"email":    "short@example.com",
			"password": "12345",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("login ok", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email":    "NEW@example.com",
			"password": "secret123",
		})
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp authResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Account.Plan != "personal" || resp.Account.CreditsQuota != 100 {
			t.Errorf("account = %+v", resp.Account)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email":    "ghost@example.com",
			"password": "secret123",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
			"email":    "new@example.com",
			"password": "wrong-pass",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestAuthRequired(t *testing.T) {
	server, _ := setupServer(t, &stubProvider{output: "out"})

	t.Run("missing token", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/me", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/me", "garbage", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestGenerate(t *testing.T) {
	server, storage := setupServer(t, &stubProvider{output: "generated content"})
	token, accountID := registerUser(t, server, "gen@example.com")

	rec := doJSON(t, server, http.MethodPost, "/api/generate", token, map[string]interface{}{
		"type":        "test",
		"source_text": sourceText(),
		"questions":   5,
		"title":       "History quiz",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.OutputText != "generated content" {
		t.Errorf("OutputText = %q", resp.OutputText)
	}
	if resp.Cost != 5 || resp.CreditsUsed != 5 || resp.CreditsRemaining != 95 {
		t.Errorf("credits: %+v", resp)
	}
	if resp.Material == nil || resp.Material.Title != "History quiz" {
		t.Errorf("material: %+v", resp.Material)
	}

	acc, _ := storage.GetAccount(context.Background(), accountID)
	if acc.CreditsUsed != 5 {
		t.Errorf("CreditsUsed = %d, want 5", acc.CreditsUsed)
	}
}

func TestGenerate_InsufficientCredits(t *testing.T) {
	server, storage := setupServer(t, &stubProvider{output: "out"})
	token, accountID := registerUser(t, server, "poor@example.com")

	// Burn the balance down to 2 remaining.
	acc, _ := storage.GetAccount(context.Background(), accountID)
	acc.CreditsUsed = 98
	if err := storage.SaveAccount(context.Background(), acc); err != nil {
		t.Fatalf("Failed to save account: %v", err)
	}

	rec := doJSON(t, server, http.MethodPost, "/api/generate", token, map[string]interface{}{
		"type":        "test",
		"source_text": sourceText(),
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402, body %s", rec.Code, rec.Body.String())
	}

	var resp errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Remaining == nil || *resp.Remaining != 2 {
		t.Errorf("remaining = %v, want 2", resp.Remaining)
	}
}

func TestGenerate_Failures(t *testing.T) {
	t.Run("provider down maps to 502", func(t *testing.T) {
		server, _ := setupServer(t, &stubProvider{err: fmt.Errorf("%w: boom", credits.ErrProviderUnavailable)})
		token, _ := registerUser(t, server, "down@example.com")

		rec := doJSON(t, server, http.MethodPost, "/api/generate", token, map[string]interface{}{
			"type":        "summary",
			"source_text": sourceText(),
		})
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("invalid type maps to 400", func(t *testing.T) {
		server, _ := setupServer(t, &stubProvider{output: "out"})
		token, _ := registerUser(t, server, "bad@example.com")

		rec := doJSON(t, server, http.MethodPost, "/api/generate", token, map[string]interface{}{
			"type":        "poster",
			"source_text": sourceText(),
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("short source maps to 400", func(t *testing.T) {
		server, _ := setupServer(t, &stubProvider{output: "out"})
		token, _ := registerUser(t, server, "tiny@example.com")

		rec := doJSON(t, server, http.MethodPost, "/api/generate", token, map[string]interface{}{
			"type":        "summary",
			"source_text": "too short",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestMaterialsLifecycle(t *testing.T) {
	server, _ := setupServer(t, &stubProvider{output: "material body"})
	token, _ := registerUser(t, server, "mat@example.com")

	// Create one material through generation.
	rec := doJSON(t, server, http.MethodPost, "/api/generate", token, map[string]interface{}{
		"type":        "summary",
		"source_text": sourceText(),
		"title":       "Original title",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rec.Code)
	}
	var gen generateResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &gen)
	materialID := gen.Material.ID

	t.Run("list omits output text", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/materials", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Materials []*materialResponse `json:"materials"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if len(resp.Materials) != 1 {
			t.Fatalf("len = %d, want 1", len(resp.Materials))
		}
		if resp.Materials[0].OutputText != "" {
			t.Error("List view must omit output text")
		}
	})

	t.Run("get includes output text", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodGet, "/api/materials/"+materialID, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp materialResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.OutputText != "material body" {
			t.Errorf("OutputText = %q", resp.OutputText)
		}
	})

	t.Run("update title", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPatch, "/api/materials/"+materialID, token, map[string]interface{}{
			"title": "Renamed",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp materialResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Title != "Renamed" {
			t.Errorf("Title = %q", resp.Title)
		}
	})

	t.Run("foreign account cannot see it", func(t *testing.T) {
		otherToken, _ := registerUser(t, server, "other@example.com")
		rec := doJSON(t, server, http.MethodGet, "/api/materials/"+materialID, otherToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodDelete, "/api/materials/"+materialID, token, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		rec = doJSON(t, server, http.MethodGet, "/api/materials/"+materialID, token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status after delete = %d, want 404", rec.Code)
		}
	})
}

func TestWaitlist(t *testing.T) {
	server, storage := setupServer(t, &stubProvider{output: "out"})

	rec := doJSON(t, server, http.MethodPost, "/api/waitlist", "", map[string]interface{}{
		"name":    "Curious Teacher",
		"email":   "curious@example.com",
		"consent": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if storage.WaitlistLen() != 1 {
		t.Errorf("WaitlistLen = %d, want 1", storage.WaitlistLen())
	}

	t.Run("invalid email rejected", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/waitlist", "", map[string]interface{}{
			"name":  "Nope",
			"email": "not-an-email",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestCheckout_Unconfigured(t *testing.T) {
	server, _ := setupServer(t, &stubProvider{output: "out"})
	token, _ := registerUser(t, server, "buy@example.com")

	rec := doJSON(t, server, http.MethodPost, "/api/billing/checkout", token, map[string]interface{}{
		"plan": "pro",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without billing provider", rec.Code)
	}
}

func TestCheckout_Configured(t *testing.T) {
	storage := memory.New()
	gate, _ := credits.NewGate(credits.GateConfig{
		Accounts:  storage,
		Materials: storage,
		Provider:  &stubProvider{output: "out"},
	})
	tokens, _ := auth.NewTokenSigner("test-secret", time.Hour)

	checkout := checkoutFunc(func(_ context.Context, accountID, email string, plan credits.Plan, successURL, cancelURL string) (string, error) {
		return "https://checkout.example.com/" + string(plan), nil
	})

	server, err := NewServer(Config{
		Accounts:           storage,
		Materials:          storage,
		Gate:               gate,
		Tokens:             tokens,
		Checkout:           checkout,
		CheckoutSuccessURL: "https://app.example.com/success",
		CheckoutCancelURL:  "https://app.example.com/cancel",
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	token, _ := registerUser(t, server, "checkout@example.com")

	rec := doJSON(t, server, http.MethodPost, "/api/billing/checkout", token, map[string]interface{}{
		"plan": "pro",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp checkoutResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.URL != "https://checkout.example.com/pro" {
		t.Errorf("URL = %q", resp.URL)
	}

	t.Run("personal plan not purchasable", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/billing/checkout", token, map[string]interface{}{
			"plan": "personal",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

type checkoutFunc func(ctx context.Context, accountID, email string, plan credits.Plan, successURL, cancelURL string) (string, error)

func (f checkoutFunc) CheckoutURL(ctx context.Context, accountID, email string, plan credits.Plan, successURL, cancelURL string) (string, error) {
	return f(ctx, accountID, email, plan, successURL, cancelURL)
}

func TestHealth(t *testing.T) {
	server, _ := setupServer(t, &stubProvider{output: "out"})
	rec := doJSON(t, server, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
