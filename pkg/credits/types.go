package credits

import "time"

// Plan identifies a subscription tier. The plan determines the monthly
// credit quota (see QuotaFor).
type Plan string

const (
	// PlanPersonal is the entry tier and the fallback for unknown values.
	PlanPersonal Plan = "personal"
	// PlanPro is the paid tier for individual teachers.
	PlanPro Plan = "pro"
	// PlanAcademia is the institutional tier.
	PlanAcademia Plan = "academia"
)

// Valid reports whether p is one of the three known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanPersonal, PlanPro, PlanAcademia:
		return true
	default:
		return false
	}
}

// MaterialType identifies the kind of artifact a generation produces.
type MaterialType string

const (
	MaterialTest         MaterialType = "test"
	MaterialSummary      MaterialType = "summary"
	MaterialStudyGuide   MaterialType = "study_guide"
	MaterialPresentation MaterialType = "presentation"
)

// Valid reports whether t is a known material type.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialTest, MaterialSummary, MaterialStudyGuide, MaterialPresentation:
		return true
	default:
		return false
	}
}

// Difficulty controls how demanding the generated material is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// NormalizeDifficulty maps arbitrary input to a valid difficulty,
// defaulting to medium.
func NormalizeDifficulty(v string) Difficulty {
	switch Difficulty(v) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// SubscriptionStatus tracks the billing state of an account.
type SubscriptionStatus string

const (
	SubscriptionNone     SubscriptionStatus = "none"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// BillingRef holds the external billing identifiers for an account.
// Both fields are empty until the first successful checkout.
type BillingRef struct {
	CustomerID     string
	SubscriptionID string
}

// Account is a registered user together with its plan and credit counter.
//
// CreditsUsed only ever increases by the cost of a successful generation
// and only ever resets to zero (billing event or scheduled reset); it is
// never partially decreased.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Center       string

	Plan               Plan
	CreditsUsed        int
	SubscriptionStatus SubscriptionStatus
	BillingRef         BillingRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining returns the credits left on the account, clamped to zero.
// A plan downgrade can push CreditsUsed above the new quota; callers see
// that as "no credits available", not an error.
func (a *Account) Remaining() int {
	r := QuotaFor(a.Plan) - a.CreditsUsed
	if r < 0 {
		return 0
	}
	return r
}

// MaterialRecord is one generated artifact and its metadata. Records are
// created exactly once per successful generation and never auto-deleted;
// only Title and OutputText may be edited afterwards.
type MaterialRecord struct {
	ID           string
	OwnerID      string
	Title        string
	Type         MaterialType
	Difficulty   Difficulty
	Questions    int
	SourceLength int
	Cost         int
	OutputText   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GenerationRequest is the validated input for one generation attempt.
type GenerationRequest struct {
	Type       MaterialType
	SourceText string
	Difficulty Difficulty
	Questions  int
	Title      string
}

// GenerationResult is returned on a successful generation.
type GenerationResult struct {
	OutputText       string
	Cost             int
	CreditsUsed      int
	CreditsQuota     int
	CreditsRemaining int
	Record           *MaterialRecord
}
