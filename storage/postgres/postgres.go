// Package postgres provides a PostgreSQL implementation of the credits
// and waitlist stores. The credit debit is a single conditional UPDATE,
// so concurrent debits serialize on the account row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/pkg/waitlist"
)

const (
	defaultListLimit = 100

	uniqueViolationCode = "23505"
)

// Storage implements credits.AccountStore, credits.MaterialStore and
// waitlist.Store using PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

// Config holds PostgreSQL storage configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter.
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables if they do not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			center TEXT NOT NULL DEFAULT '',
			plan TEXT NOT NULL DEFAULT 'personal',
			credits_used INTEGER NOT NULL DEFAULT 0,
			subscription_status TEXT NOT NULL DEFAULT 'none',
			billing_customer_id TEXT NOT NULL DEFAULT '',
			billing_subscription_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_billing_customer
			ON accounts (billing_customer_id) WHERE billing_customer_id <> '';
		CREATE INDEX IF NOT EXISTS idx_accounts_billing_subscription
			ON accounts (billing_subscription_id) WHERE billing_subscription_id <> '';

		CREATE TABLE IF NOT EXISTS materials (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			difficulty TEXT NOT NULL DEFAULT '',
			questions INTEGER NOT NULL DEFAULT 0,
			source_length INTEGER NOT NULL DEFAULT 0,
			cost INTEGER NOT NULL DEFAULT 0,
			output_text TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_materials_owner_created
			ON materials (owner_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS waitlist (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			center TEXT NOT NULL DEFAULT '',
			plan TEXT NOT NULL DEFAULT '',
			consent BOOLEAN NOT NULL DEFAULT FALSE,
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// GetAccount implements credits.AccountStore.
func (s *Storage) GetAccount(ctx context.Context, id string) (*credits.Account, error) {
	return s.getAccountWhere(ctx, "id = $1", id)
}

// GetAccountByEmail implements credits.AccountStore.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*credits.Account, error) {
	return s.getAccountWhere(ctx, "email = $1", email)
}

// GetAccountByBillingRef implements credits.AccountStore.
func (s *Storage) GetAccountByBillingRef(ctx context.Context, ref credits.BillingRef) (*credits.Account, error) {
	if ref.CustomerID != "" {
		acc, err := s.getAccountWhere(ctx, "billing_customer_id = $1", ref.CustomerID)
		if err == nil || !errors.Is(err, credits.ErrAccountNotFound) {
			return acc, err
		}
	}
	if ref.SubscriptionID != "" {
		return s.getAccountWhere(ctx, "billing_subscription_id = $1", ref.SubscriptionID)
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Storage) getAccountWhere(ctx context.Context, where string, arg interface{}) (*credits.Account, error) {
	var acc credits.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, center, plan,
			credits_used, subscription_status,
			billing_customer_id, billing_subscription_id,
			created_at, updated_at
			FROM accounts WHERE `+where,
		arg).Scan(
		&acc.ID, &acc.Name, &acc.Email, &acc.PasswordHash, &acc.Role, &acc.Center,
		&acc.Plan, &acc.CreditsUsed, &acc.SubscriptionStatus,
		&acc.BillingRef.CustomerID, &acc.BillingRef.SubscriptionID,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, credits.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

// CreateAccount implements credits.AccountStore. The unique constraint
// on email is the source of truth for duplicate registrations.
func (s *Storage) CreateAccount(ctx context.Context, acc *credits.Account) error {
	if acc == nil || acc.ID == "" {
		return fmt.Errorf("invalid account")
	}

	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts
			(id, name, email, password_hash, role, center, plan,
			credits_used, subscription_status,
			billing_customer_id, billing_subscription_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		acc.ID, acc.Name, acc.Email, acc.PasswordHash, acc.Role, acc.Center,
		string(acc.Plan), acc.CreditsUsed, string(acc.SubscriptionStatus),
		acc.BillingRef.CustomerID, acc.BillingRef.SubscriptionID,
		acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return credits.ErrEmailTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// SaveAccount implements credits.AccountStore.
func (s *Storage) SaveAccount(ctx context.Context, acc *credits.Account) error {
	if acc == nil || acc.ID == "" {
		return fmt.Errorf("invalid account")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET
			name = $2, role = $3, center = $4, plan = $5,
			credits_used = $6, subscription_status = $7,
			billing_customer_id = $8, billing_subscription_id = $9,
			updated_at = NOW()
			WHERE id = $1`,
		acc.ID, acc.Name, acc.Role, acc.Center, string(acc.Plan),
		acc.CreditsUsed, string(acc.SubscriptionStatus),
		acc.BillingRef.CustomerID, acc.BillingRef.SubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return credits.ErrAccountNotFound
	}
	return nil
}

// DebitCredits implements credits.AccountStore. The quota condition
// lives inside the UPDATE, so the increment and the check are one
// atomic statement.
func (s *Storage) DebitCredits(ctx context.Context, id string, amount, quota int) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("invalid debit amount %d", amount)
	}

	var newUsed int
	err := s.pool.QueryRow(ctx,
		`UPDATE accounts
			SET credits_used = credits_used + $2, updated_at = NOW()
			WHERE id = $1 AND credits_used + $2 <= $3
			RETURNING credits_used`,
		id, amount, quota).Scan(&newUsed)
	if err == nil {
		return newUsed, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}

	// No row matched: either the account is missing or the debit would
	// exceed the quota.
	var used int
	err = s.pool.QueryRow(ctx,
		`SELECT credits_used FROM accounts WHERE id = $1`, id).Scan(&used)
	if err == pgx.ErrNoRows {
		return 0, credits.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read credits: %w", err)
	}

	remaining := quota - used
	if remaining < 0 {
		remaining = 0
	}
	return used, &credits.InsufficientCreditsError{Remaining: remaining, Cost: amount}
}

// ResetCredits implements credits.AccountStore.
func (s *Storage) ResetCredits(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET credits_used = 0, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to reset credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return credits.ErrAccountNotFound
	}
	return nil
}

// ResetAllCredits implements credits.AccountStore.
func (s *Storage) ResetAllCredits(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET credits_used = 0, updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CreateMaterial implements credits.MaterialStore.
func (s *Storage) CreateMaterial(ctx context.Context, rec *credits.MaterialRecord) error {
	if rec == nil || rec.ID == "" || rec.OwnerID == "" {
		return fmt.Errorf("invalid material record")
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO materials
			(id, owner_id, title, type, difficulty, questions,
			source_length, cost, output_text, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.OwnerID, rec.Title, string(rec.Type), string(rec.Difficulty),
		rec.Questions, rec.SourceLength, rec.Cost, rec.OutputText,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

// ListMaterials implements credits.MaterialStore.
func (s *Storage) ListMaterials(ctx context.Context, ownerID string, limit int) ([]*credits.MaterialRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, title, type, difficulty, questions,
			source_length, cost, output_text, created_at, updated_at
			FROM materials WHERE owner_id = $1
			ORDER BY created_at DESC
			LIMIT $2`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	out := make([]*credits.MaterialRecord, 0)
	for rows.Next() {
		var rec credits.MaterialRecord
		if err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.Title, &rec.Type, &rec.Difficulty,
			&rec.Questions, &rec.SourceLength, &rec.Cost, &rec.OutputText,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	return out, nil
}

// GetMaterial implements credits.MaterialStore.
func (s *Storage) GetMaterial(ctx context.Context, ownerID, id string) (*credits.MaterialRecord, error) {
	var rec credits.MaterialRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, type, difficulty, questions,
			source_length, cost, output_text, created_at, updated_at
			FROM materials WHERE id = $1 AND owner_id = $2`,
		id, ownerID).Scan(
		&rec.ID, &rec.OwnerID, &rec.Title, &rec.Type, &rec.Difficulty,
		&rec.Questions, &rec.SourceLength, &rec.Cost, &rec.OutputText,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, credits.ErrMaterialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return &rec, nil
}

// UpdateMaterial implements credits.MaterialStore.
func (s *Storage) UpdateMaterial(ctx context.Context, rec *credits.MaterialRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("invalid material record")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE materials SET title = $3, output_text = $4, updated_at = NOW()
			WHERE id = $1 AND owner_id = $2`,
		rec.ID, rec.OwnerID, rec.Title, rec.OutputText)
	if err != nil {
		return fmt.Errorf("failed to update material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return credits.ErrMaterialNotFound
	}
	return nil
}

// DeleteMaterial implements credits.MaterialStore.
func (s *Storage) DeleteMaterial(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM materials WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete material: %w", err)
	}
	if tag.RowsAffected() == 0 {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO waitlist
			(id, name, email, role, center, plan, consent, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Email, e.Role, e.Center, e.Plan, e.Consent, e.Source, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add waitlist entry: %w", err)
	}
	return nil
}
