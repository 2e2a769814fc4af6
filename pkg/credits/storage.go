package credits

import "context"

// AccountStore defines persistence for accounts. All credit mutations go
// through this interface so every caller (generation gate, billing
// handler, scheduled reset) shares the same atomicity guarantees instead
// of duplicating read-modify-write logic.
type AccountStore interface {
	// GetAccount retrieves an account by id.
	// Returns ErrAccountNotFound if absent.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// GetAccountByEmail retrieves an account by normalized email.
	// Returns ErrAccountNotFound if absent.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// GetAccountByBillingRef retrieves an account matching either the
	// billing customer id or the subscription id (whichever is set).
	// Returns ErrAccountNotFound if nothing matches.
	GetAccountByBillingRef(ctx context.Context, ref BillingRef) (*Account, error)

	// CreateAccount persists a new account.
	// Returns ErrEmailTaken when the email is already registered.
	CreateAccount(ctx context.Context, acc *Account) error

	// SaveAccount persists plan, credit counter, subscription status and
	// billing refs atomically as one record.
	SaveAccount(ctx context.Context, acc *Account) error

	// DebitCredits atomically applies `creditsUsed += amount` iff
	// creditsUsed + amount <= quota, and returns the new counter value.
	// Returns an *InsufficientCreditsError when the condition fails; the
	// counter is left untouched in that case. Two concurrent debits for
	// the same account can never push the counter past the quota.
	DebitCredits(ctx context.Context, id string, amount, quota int) (int, error)

	// ResetCredits sets the credit counter of one account to zero.
	// Resetting an already-zero counter is a no-op, not an error.
	ResetCredits(ctx context.Context, id string) error

	// ResetAllCredits zeroes the counter of every account and returns the
	// number of accounts touched.
	ResetAllCredits(ctx context.Context) (int, error)
}

// MaterialStore defines persistence for generation history. It is
// independent of AccountStore: a record create that fails after a debit
// succeeded is logged and accepted, not rolled back (retrying would
// re-invoke the paid content provider).
type MaterialStore interface {
	// CreateMaterial persists a new record.
	CreateMaterial(ctx context.Context, rec *MaterialRecord) error

	// ListMaterials returns the owner's records, newest first, capped at
	// limit (0 means the store default).
	ListMaterials(ctx context.Context, ownerID string, limit int) ([]*MaterialRecord, error)

	// GetMaterial retrieves one record scoped to its owner.
	// Returns ErrMaterialNotFound if absent or owned by someone else.
	GetMaterial(ctx context.Context, ownerID, id string) (*MaterialRecord, error)

	// UpdateMaterial persists edits to an existing record, scoped to its
	// owner. Returns ErrMaterialNotFound if absent.
	UpdateMaterial(ctx context.Context, rec *MaterialRecord) error

	// DeleteMaterial removes a record scoped to its owner.
	// Returns ErrMaterialNotFound if absent.
	DeleteMaterial(ctx context.Context, ownerID, id string) error
}

// ContentProvider produces the material text for a validated request.
// Invoked at most once per generation attempt; the gate does not retry.
type ContentProvider interface {
	// Generate returns the output text, or an error wrapping
	// ErrProviderUnavailable on failure or timeout.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
