// Package memory provides an in-memory implementation of the credits
// and waitlist stores. This implementation is primarily intended for
// testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/pkg/waitlist"
)

const defaultListLimit = 100

// Storage implements credits.AccountStore, credits.MaterialStore and
// waitlist.Store using in-memory maps.
type Storage struct {
	mu        sync.RWMutex
	accounts  map[string]*credits.Account
	byEmail   map[string]string
	materials map[string]*credits.MaterialRecord
	waitlist  []*waitlist.Entry
}

// New creates a new in-memory storage adapter.
func New() *Storage {
	return &Storage{
		accounts:  make(map[string]*credits.Account),
		byEmail:   make(map[string]string),
		materials: make(map[string]*credits.MaterialRecord),
	}
}

// GetAccount implements credits.AccountStore.
func (s *Storage) GetAccount(ctx context.Context, id string) (*credits.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, credits.ErrAccountNotFound
	}
	accCopy := *acc
	return &accCopy, nil
}

// GetAccountByEmail implements credits.AccountStore.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*credits.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, credits.ErrAccountNotFound
	}
	accCopy := *s.accounts[id]
	return &accCopy, nil
}

// GetAccountByBillingRef implements credits.AccountStore.
func (s *Storage) GetAccountByBillingRef(ctx context.Context, ref credits.BillingRef) (*credits.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if (ref.CustomerID != "" && acc.BillingRef.CustomerID == ref.CustomerID) ||
			(ref.SubscriptionID != "" && acc.BillingRef.SubscriptionID == ref.SubscriptionID) {
			accCopy := *acc
			return &accCopy, nil
		}
	}
	return nil, credits.ErrAccountNotFound
}

// CreateAccount implements credits.AccountStore.
func (s *Storage) CreateAccount(ctx context.Context, acc *credits.Account) error {
	if acc == nil || acc.ID == "" {
		return fmt.Errorf("invalid account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(acc.Email)
	if _, taken := s.byEmail[email]; taken {
		return credits.ErrEmailTaken
	}

	now := time.Now().UTC()
	accCopy := *acc
	accCopy.Email = email
	accCopy.CreatedAt = now
	accCopy.UpdatedAt = now
	s.accounts[acc.ID] = &accCopy
	s.byEmail[email] = acc.ID

	acc.Email = email
	acc.CreatedAt = now
	acc.UpdatedAt = now
	return nil
}

// SaveAccount implements credits.AccountStore.
func (s *Storage) SaveAccount(ctx context.Context, acc *credits.Account) error {
	if acc == nil || acc.ID == "" {
		return fmt.Errorf("invalid account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[acc.ID]
	if !ok {
		return credits.ErrAccountNotFound
	}

	accCopy := *acc
	accCopy.Email = normalizeEmail(acc.Email)
	accCopy.CreatedAt = existing.CreatedAt
	accCopy.UpdatedAt = time.Now().UTC()

	if existing.Email != accCopy.Email {
		delete(s.byEmail, existing.Email)
		s.byEmail[accCopy.Email] = acc.ID
	}
	s.accounts[acc.ID] = &accCopy
	return nil
}

// DebitCredits implements credits.AccountStore with an atomic
// conditional increment under the store lock.
func (s *Storage) DebitCredits(ctx context.Context, id string, amount, quota int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("invalid debit amount %d", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return 0, credits.ErrAccountNotFound
	}

	newUsed := acc.CreditsUsed + amount
	if newUsed > quota {
		remaining := quota - acc.CreditsUsed
		if remaining < 0 {
			remaining = 0
		}
		return acc.CreditsUsed, &credits.InsufficientCreditsError{Remaining: remaining, Cost: amount}
	}

	acc.CreditsUsed = newUsed
	acc.UpdatedAt = time.Now().UTC()
	return newUsed, nil
}

// ResetCredits implements credits.AccountStore.
func (s *Storage) ResetCredits(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return credits.ErrAccountNotFound
	}
	acc.CreditsUsed = 0
	acc.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetAllCredits implements credits.AccountStore.
func (s *Storage) ResetAllCredits(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, acc := range s.accounts {
		acc.CreditsUsed = 0
		acc.UpdatedAt = now
	}
	return len(s.accounts), nil
}

// CreateMaterial implements credits.MaterialStore.
func (s *Storage) CreateMaterial(ctx context.Context, rec *credits.MaterialRecord) error {
	if rec == nil || rec.ID == "" || rec.OwnerID == "" {
		return fmt.Errorf("invalid material record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	recCopy := *rec
	recCopy.CreatedAt = now
	recCopy.UpdatedAt = now
	s.materials[rec.ID] = &recCopy

	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// ListMaterials implements credits.MaterialStore.
func (s *Storage) ListMaterials(ctx context.Context, ownerID string, limit int) ([]*credits.MaterialRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*credits.MaterialRecord, 0)
	for _, rec := range s.materials {
		if rec.OwnerID == ownerID {
			recCopy := *rec
			out = append(out, &recCopy)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetMaterial implements credits.MaterialStore.
func (s *Storage) GetMaterial(ctx context.Context, ownerID, id string) (*credits.MaterialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.materials[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, credits.ErrMaterialNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

// UpdateMaterial implements credits.MaterialStore.
func (s *Storage) UpdateMaterial(ctx context.Context, rec *credits.MaterialRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("invalid material record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.materials[rec.ID]
	if !ok || existing.OwnerID != rec.OwnerID {
		return credits.ErrMaterialNotFound
	}

	recCopy := *rec
	recCopy.CreatedAt = existing.CreatedAt
	recCopy.UpdatedAt = time.Now().UTC()
	s.materials[rec.ID] = &recCopy
	return nil
}

// DeleteMaterial implements credits.MaterialStore.
func (s *Storage) DeleteMaterial(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.materials[id]
	if !ok || rec.OwnerID != ownerID {
		return credits.ErrMaterialNotFound
	}
	delete(s.materials, id)
	return nil
}

// AddEntry implements waitlist.Store.
func (s *Storage) AddEntry(ctx context.Context, e *waitlist.Entry) error {
	if e == nil || e.Email == "" {
		return fmt.Errorf("invalid waitlist entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eCopy := *e
	eCopy.Email = normalizeEmail(e.Email)
	if eCopy.CreatedAt.IsZero() {
		eCopy.CreatedAt = time.Now().UTC()
	}
	s.waitlist = append(s.waitlist, &eCopy)
	return nil
}

// WaitlistLen returns the number of captured entries (useful for testing).
func (s *Storage) WaitlistLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.waitlist)
}

// Clear removes all data (useful for testing).
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[string]*credits.Account)
	s.byEmail = make(map[string]string)
	s.materials = make(map[string]*credits.MaterialRecord)
	s.waitlist = nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
