// Package firestore provides a Firestore implementation of the credits
// and waitlist stores for production-grade persistence.
package firestore

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/pkg/waitlist"
)

const defaultListLimit = 100

// Storage implements credits.AccountStore, credits.MaterialStore and
// waitlist.Store using Google Cloud Firestore.
type Storage struct {
	client              *firestore.Client
	accountsCollection  string
	emailsCollection    string
	materialsCollection string
	waitlistCollection  string
}

// Config holds Firestore storage configuration.
type Config struct {
	// AccountsCollection is the Firestore collection for accounts.
	// Default: "accounts"
	AccountsCollection string

	// EmailsCollection is the Firestore collection backing the unique
	// email index. Default: "account_emails"
	EmailsCollection string

	// MaterialsCollection is the Firestore collection for generated
	// materials. Default: "materials"
	MaterialsCollection string

	// WaitlistCollection is the Firestore collection for waitlist
	// signups. Default: "waitlist"
	WaitlistCollection string
}

// New creates a new Firestore storage adapter.
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.AccountsCollection == "" {
		config.AccountsCollection = "accounts"
	}
	if config.EmailsCollection == "" {
		config.EmailsCollection = "account_emails"
	}
	if config.MaterialsCollection == "" {
		config.MaterialsCollection = "materials"
	}
	if config.WaitlistCollection == "" {
		config.WaitlistCollection = "waitlist"
	}

	return &Storage{
		client:              client,
		accountsCollection:  config.AccountsCollection,
		emailsCollection:    config.EmailsCollection,
		materialsCollection: config.MaterialsCollection,
		waitlistCollection:  config.WaitlistCollection,
	}, nil
}

// GetAccount implements credits.AccountStore.
func (s *Storage) GetAccount(ctx context.Context, id string) (*credits.Account, error) {
	snap, err := s.accountDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if !snap.Exists() {
		return nil, credits.ErrAccountNotFound
	}
	return accountFromData(id, snap.Data()), nil
}

// GetAccountByEmail implements credits.AccountStore via the email index.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*credits.Account, error) {
	snap, err := s.emailDoc(email).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	accountID := getString(snap.Data(), "accountId")
	if accountID == "" {
		return nil, credits.ErrAccountNotFound
	}
	return s.GetAccount(ctx, accountID)
}

// GetAccountByBillingRef implements credits.AccountStore.
func (s *Storage) GetAccountByBillingRef(ctx context.Context, ref credits.BillingRef) (*credits.Account, error) {
	if ref.CustomerID != "" {
		acc, err := s.queryOneAccount(ctx, "billingCustomerId", ref.CustomerID)
		if err == nil || err != credits.ErrAccountNotFound {
			return acc, err
		}
	}
	if ref.SubscriptionID != "" {
		return s.queryOneAccount(ctx, "billingSubscriptionId", ref.SubscriptionID)
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Storage) queryOneAccount(ctx context.Context, field, value string) (*credits.Account, error) {
	iter := s.client.Collection(s.accountsCollection).
		Where(field, "==", value).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		// Both iterator exhaustion and transport failures land here; an
		// empty result is by far the common case.
		return nil, credits.ErrAccountNotFound
	}
	return accountFromData(snap.Ref.ID, snap.Data()), nil
}

// CreateAccount implements credits.AccountStore. The email index doc is
// created in the same transaction, so two concurrent registrations with
// the same email cannot both succeed.
func (s *Storage) CreateAccount(ctx context.Context, acc *credits.Account) error {
	if acc == nil || acc.ID == "" {
		return fmt.Errorf("invalid account")
	}

	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(s.emailDoc(acc.Email), map[string]interface{}{
			"accountId": acc.ID,
			"createdAt": now,
		}); err != nil {
			return err
		}
		return tx.Create(s.accountDoc(acc.ID), accountData(acc))
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return credits.ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// SaveAccount implements credits.AccountStore. The email is treated as
// immutable; only the mutable account fields are written.
func (s *Storage) SaveAccount(ctx context.Context, acc *credits.Account) error {
	if acc == nil || acc.ID == "" {
		return fmt.Errorf("invalid account")
	}

	acc.UpdatedAt = time.Now().UTC()
	data := accountData(acc)
	delete(data, "email")
	delete(data, "createdAt")

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(s.accountDoc(acc.ID)); err != nil {
			return err
		}
		return tx.Set(s.accountDoc(acc.ID), data, firestore.MergeAll)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return credits.ErrAccountNotFound
		}
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// DebitCredits implements credits.AccountStore with a transaction-safe
// conditional increment.
func (s *Storage) DebitCredits(ctx context.Context, id string, amount, quota int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("invalid debit amount %d", amount)
	}

	doc := s.accountDoc(id)
	var newUsed int
	var insufficient *credits.InsufficientCreditsError

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			return err
		}

		used := getInt(snap.Data(), "creditsUsed")
		newUsed = used + amount
		if newUsed > quota {
			remaining := quota - used
			if remaining < 0 {
				remaining = 0
			}
			// Returning nil commits an empty transaction; the typed error
			// is surfaced after the commit instead of triggering a retry.
			insufficient = &credits.InsufficientCreditsError{Remaining: remaining, Cost: amount}
			newUsed = used
			return nil
		}

		return tx.Set(doc, map[string]interface{}{
			"creditsUsed": newUsed,
			"updatedAt":   time.Now().UTC(),
		}, firestore.MergeAll)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, credits.ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}
	if insufficient != nil {
		return newUsed, insufficient
	}
	return newUsed, nil
}

// ResetCredits implements credits.AccountStore.
func (s *Storage) ResetCredits(ctx context.Context, id string) error {
	doc := s.accountDoc(id)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(doc); err != nil {
			return err
		}
		return tx.Set(doc, map[string]interface{}{
			"creditsUsed": 0,
			"updatedAt":   time.Now().UTC(),
		}, firestore.MergeAll)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return credits.ErrAccountNotFound
		}
		return fmt.Errorf("failed to reset credits: %w", err)
	}
	return nil
}

// ResetAllCredits implements credits.AccountStore by walking the
// accounts collection. Runs monthly; a full scan is acceptable at this
// scale.
func (s *Storage) ResetAllCredits(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.accountsCollection).Documents(ctx)
	defer iter.Stop()

	now := time.Now().UTC()
	count := 0
	for {
		snap, err := iter.Next()
		if err != nil {
			break
		}
		if _, err := snap.Ref.Set(ctx, map[string]interface{}{
			"creditsUsed": 0,
			"updatedAt":   now,
		}, firestore.MergeAll); err != nil {
			return count, fmt.Errorf("failed to reset credits for %s: %w", snap.Ref.ID, err)
		}
		count++
	}
	return count, nil
}

// CreateMaterial implements credits.MaterialStore.
func (s *Storage) CreateMaterial(ctx context.Context, rec *credits.MaterialRecord) error {
	if rec == nil || rec.ID == "" || rec.OwnerID == "" {
		return fmt.Errorf("invalid material record")
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if _, err := s.materialDoc(rec.ID).Create(ctx, materialData(rec)); err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

// ListMaterials implements credits.MaterialStore.
func (s *Storage) ListMaterials(ctx context.Context, ownerID string, limit int) ([]*credits.MaterialRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	iter := s.client.Collection(s.materialsCollection).
		Where("ownerId", "==", ownerID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	out := make([]*credits.MaterialRecord, 0)
	for {
		snap, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, materialFromData(snap.Ref.ID, snap.Data()))
	}
	return out, nil
}

// GetMaterial implements credits.MaterialStore.
func (s *Storage) GetMaterial(ctx context.Context, ownerID, id string) (*credits.MaterialRecord, error) {
	snap, err := s.materialDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, credits.ErrMaterialNotFound
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}

	rec := materialFromData(id, snap.Data())
	if rec.OwnerID != ownerID {
		return nil, credits.ErrMaterialNotFound
	}
	return rec, nil
}

// UpdateMaterial implements credits.MaterialStore.
func (s *Storage) UpdateMaterial(ctx context.Context, rec *credits.MaterialRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("invalid material record")
	}

	doc := s.materialDoc(rec.ID)
	notFound := false
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if getString(snap.Data(), "ownerId") != rec.OwnerID {
			notFound = true
			return nil
		}
		return tx.Set(doc, map[string]interface{}{
			"title":      rec.Title,
			"outputText": rec.OutputText,
			"updatedAt":  time.Now().UTC(),
		}, firestore.MergeAll)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return credits.ErrMaterialNotFound
		}
		return fmt.Errorf("failed to update material: %w", err)
	}
	if notFound {
		return credits.ErrMaterialNotFound
	}
	return nil
}

// DeleteMaterial implements credits.MaterialStore.
func (s *Storage) DeleteMaterial(ctx context.Context, ownerID, id string) error {
	doc := s.materialDoc(id)
	notFound := false
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(doc)
		if err != nil {
			return err
		}
		if getString(snap.Data(), "ownerId") != ownerID {
			notFound = true
			return nil
		}
		return tx.Delete(doc)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return credits.ErrMaterialNotFound
		}
		return fmt.Errorf("failed to delete material: %w", err)
	}
	if notFound {
		return credits.ErrMaterialNotFound
	}
	return nil
}

// AddEntry implements waitlist.Store.
func (s *Storage) AddEntry(ctx context.Context, e *waitlist.Entry) error {
	if e == nil || e.Email == "" {
		return fmt.Errorf("invalid waitlist entry")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	doc := s.client.Collection(s.waitlistCollection).NewDoc()
	if e.ID != "" {
		doc = s.client.Collection(s.waitlistCollection).Doc(e.ID)
	}
	if _, err := doc.Create(ctx, map[string]interface{}{
		"name":      e.Name,
		"email":     e.Email,
		"role":      e.Role,
		"center":    e.Center,
		"plan":      e.Plan,
		"consent":   e.Consent,
		"source":    e.Source,
		"createdAt": e.CreatedAt,
	}); err != nil {
		return fmt.Errorf("failed to add waitlist entry: %w", err)
	}
	return nil
}

func (s *Storage) accountDoc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.accountsCollection).Doc(id)
}

func (s *Storage) emailDoc(email string) *firestore.DocumentRef {
	return s.client.Collection(s.emailsCollection).Doc(email)
}

func (s *Storage) materialDoc(id string) *firestore.DocumentRef {
	return s.client.Collection(s.materialsCollection).Doc(id)
}

func accountData(acc *credits.Account) map[string]interface{} {
	return map[string]interface{}{
		"name":                  acc.Name,
		"email":                 acc.Email,
		"passwordHash":          acc.PasswordHash,
		"role":                  acc.Role,
		"center":                acc.Center,
		"plan":                  string(acc.Plan),
		"creditsUsed":           acc.CreditsUsed,
		"subscriptionStatus":    string(acc.SubscriptionStatus),
		"billingCustomerId":     acc.BillingRef.CustomerID,
		"billingSubscriptionId": acc.BillingRef.SubscriptionID,
		"createdAt":             acc.CreatedAt,
		"updatedAt":             acc.UpdatedAt,
	}
}

func accountFromData(id string, data map[string]interface{}) *credits.Account {
	return &credits.Account{
		ID:                 id,
		Name:               getString(data, "name"),
		Email:              getString(data, "email"),
		PasswordHash:       getString(data, "passwordHash"),
		Role:               getString(data, "role"),
		Center:             getString(data, "center"),
		Plan:               credits.Plan(getString(data, "plan")),
		CreditsUsed:        getInt(data, "creditsUsed"),
		SubscriptionStatus: credits.SubscriptionStatus(getString(data, "subscriptionStatus")),
		BillingRef: credits.BillingRef{
			CustomerID:     getString(data, "billingCustomerId"),
			SubscriptionID: getString(data, "billingSubscriptionId"),
		},
		CreatedAt: getTime(data, "createdAt"),
		UpdatedAt: getTime(data, "updatedAt"),
	}
}

func materialData(rec *credits.MaterialRecord) map[string]interface{} {
	return map[string]interface{}{
		"ownerId":      rec.OwnerID,
		"title":        rec.Title,
		"type":         string(rec.Type),
		"difficulty":   string(rec.Difficulty),
		"questions":    rec.Questions,
		"sourceLength": rec.SourceLength,
		"cost":         rec.Cost,
		"outputText":   rec.OutputText,
		"createdAt":    rec.CreatedAt,
		"updatedAt":    rec.UpdatedAt,
	}
}

func materialFromData(id string, data map[string]interface{}) *credits.MaterialRecord {
	return &credits.MaterialRecord{
		ID:           id,
		OwnerID:      getString(data, "ownerId"),
		Title:        getString(data, "title"),
		Type:         credits.MaterialType(getString(data, "type")),
		Difficulty:   credits.Difficulty(getString(data, "difficulty")),
		Questions:    getInt(data, "questions"),
		SourceLength: getInt(data, "sourceLength"),
		Cost:         getInt(data, "cost"),
		OutputText:   getString(data, "outputText"),
		CreatedAt:    getTime(data, "createdAt"),
		UpdatedAt:    getTime(data, "updatedAt"),
	}
}

// Helper functions for type conversion from Firestore data

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(math.Round(v))
	default:
		return 0
	}
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
