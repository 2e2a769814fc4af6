package auth

import (
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("Hash must not equal the plaintext")
	}
	if !strings.HasPrefix(hash, "$2a$10$") {
		t.Errorf("Unexpected hash prefix: %q", hash[:7])
	}

	if !CheckPassword(hash, "s3cret-pass") {
		t.Error("CheckPassword rejected the correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  USER@Example.COM "); got != "user@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestTokenSignAndVerify(t *testing.T) {
	signer, err := NewTokenSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenSigner failed: %v", err)
	}

	token, err := signer.Sign("acc-42")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	accountID, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if accountID != "acc-42" {
		t.Errorf("accountID = %q, want acc-42", accountID)
	}
}

func TestTokenVerify_Rejections(t *testing.T) {
	signer, _ := NewTokenSigner("test-secret", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := signer.Verify("not.a.token"); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewTokenSigner("other-secret", time.Hour)
		token, _ := other.Sign("acc-1")
		if _, err := signer.Verify(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		short, _ := NewTokenSigner("test-secret", time.Nanosecond)
		token, _ := short.Sign("acc-1")
		time.Sleep(10 * time.Millisecond)
		if _, err := signer.Verify(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestNewTokenSigner_RequiresSecret(t *testing.T) {
	if _, err := NewTokenSigner("  ", time.Hour); err == nil {
		t.Fatal("Expected error for empty secret")
	}
}
