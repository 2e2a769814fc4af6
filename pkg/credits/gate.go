package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Input limits for generation requests. Over-long text is clipped rather
// than rejected so a teacher pasting a whole chapter still gets output.
const (
	MinSourceChars = 50
	MaxSourceChars = 9000

	MinQuestions     = 3
	MaxQuestions     = 25
	DefaultQuestions = 10
)

const defaultProviderTimeout = 60 * time.Second

// GateConfig holds configuration for a Gate.
type GateConfig struct {
	// Accounts is the account store (required).
	Accounts AccountStore

	// Materials is the generation history store (required).
	Materials MaterialStore

	// Provider is the external content provider (required).
	Provider ContentProvider

	// ProviderTimeout bounds each provider call (default: 60s).
	ProviderTimeout time.Duration

	// Logger is used for structured logging (default: NoopLogger).
	Logger Logger

	// Metrics tracks generation outcomes (default: NoopMetrics).
	Metrics Metrics
}

// Validate checks that the configuration is usable.
func (c *GateConfig) Validate() error {
	if c.Accounts == nil {
		return fmt.Errorf("account store is required")
	}
	if c.Materials == nil {
		return fmt.Errorf("material store is required")
	}
	if c.Provider == nil {
		return fmt.Errorf("content provider is required")
	}
	return nil
}

// Gate validates generation requests, checks the credit balance against
// the request cost, invokes the content provider, and commits the debit
// together with the history record only on provider success.
type Gate struct {
	accounts        AccountStore
	materials       MaterialStore
	provider        ContentProvider
	providerTimeout time.Duration
	logger          Logger
	metrics         Metrics
}

// NewGate creates a Gate from the given configuration.
func NewGate(config GateConfig) (*Gate, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate config: %w", err)
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = defaultProviderTimeout
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	return &Gate{
		accounts:        config.Accounts,
		materials:       config.Materials,
		provider:        config.Provider,
		providerTimeout: config.ProviderTimeout,
		logger:          config.Logger,
		metrics:         config.Metrics,
	}, nil
}

// AttemptGeneration runs one generation attempt for the account.
//
// The flow is a two-phase unit of work: the balance pre-check rejects
// hopeless requests before any external call, the provider produces the
// content, and only then is the debit applied as an atomic conditional
// increment. A debit that would exceed the quota fails even after
// provider success, so two concurrent attempts can never push the
// counter past the quota.
//
// The history record is written after the debit. If that write fails the
// user still gets the output and keeps the charge; the mismatch is
// logged at error level for manual reconciliation instead of retried,
// because a retry would re-invoke the paid provider.
func (g *Gate) AttemptGeneration(ctx context.Context, accountID string, req GenerationRequest) (*GenerationResult, error) {
	acc, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	norm, err := normalizeRequest(req)
	if err != nil {
		g.metrics.RecordGeneration(string(req.Type), string(acc.Plan), 0, "invalid")
		return nil, err
	}

	quota := QuotaFor(acc.Plan)
	cost := CostFor(norm.Type)
	remaining := quota - acc.CreditsUsed
	if remaining < 0 {
		remaining = 0
	}
	if cost > remaining {
		g.metrics.RecordGeneration(string(norm.Type), string(acc.Plan), cost, "insufficient_credits")
		return nil, &InsufficientCreditsError{Remaining: remaining, Cost: cost}
	}

	output, err := g.invokeProvider(ctx, norm)
	if err != nil {
		g.metrics.RecordGeneration(string(norm.Type), string(acc.Plan), cost, "provider_error")
		g.logger.Warn("content provider call failed",
			Field{Key: "account_id", Value: accountID},
			Field{Key: "type", Value: string(norm.Type)},
			Field{Key: "error", Value: err.Error()},
		)
		return nil, err
	}

	// The caller may have disconnected while the provider was running.
	// No debit without a delivered result.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	newUsed, err := g.accounts.DebitCredits(ctx, accountID, cost, quota)
	if err != nil {
		// The generated content is discarded unpaid either way, but a
		// lost race against a concurrent debit is not a storage failure.
		outcome := "storage_error"
		var insufficient *InsufficientCreditsError
		if errors.As(err, &insufficient) || errors.Is(err, ErrInsufficientCredits) {
			outcome = "insufficient_credits"
		}
		g.metrics.RecordGeneration(string(norm.Type), string(acc.Plan), cost, outcome)
		return nil, err
	}

	rec := &MaterialRecord{
		ID:           uuid.NewString(),
		OwnerID:      accountID,
		Title:        norm.Title,
		Type:         norm.Type,
		Difficulty:   norm.Difficulty,
		Questions:    norm.Questions,
		SourceLength: len(norm.SourceText),
		Cost:         cost,
		OutputText:   output,
	}
	if err := g.materials.CreateMaterial(ctx, rec); err != nil {
		// Accepted inconsistency: credits charged, no visible record.
		g.logger.Error("material record create failed after debit",
			Field{Key: "account_id", Value: accountID},
			Field{Key: "cost", Value: cost},
			Field{Key: "error", Value: err.Error()},
		)
		rec = nil
	}

	g.metrics.RecordGeneration(string(norm.Type), string(acc.Plan), cost, "success")

	remaining = quota - newUsed
	if remaining < 0 {
		remaining = 0
	}
	return &GenerationResult{
		OutputText:       output,
		Cost:             cost,
		CreditsUsed:      newUsed,
		CreditsQuota:     quota,
		CreditsRemaining: remaining,
		Record:           rec,
	}, nil
}

func (g *Gate) invokeProvider(ctx context.Context, req GenerationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.providerTimeout)
	defer cancel()

	start := time.Now()
	output, err := g.provider.Generate(ctx, req)
	g.metrics.RecordProviderCall(time.Since(start), err)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: timed out after %s", ErrProviderUnavailable, g.providerTimeout)
		}
		return "", err
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return "", fmt.Errorf("%w: empty response", ErrProviderUnavailable)
	}
	return output, nil
}

// normalizeRequest validates and cleans a generation request.
func normalizeRequest(req GenerationRequest) (GenerationRequest, error) {
	if !req.Type.Valid() {
		return req, &InvalidRequestError{
			Reason: fmt.Sprintf("unknown material type %q", string(req.Type)),
		}
	}

	req.SourceText = SanitizeSource(req.SourceText)
	if len(req.SourceText) < MinSourceChars {
		return req, &InvalidRequestError{
			Reason: fmt.Sprintf("source text too short (minimum %d characters)", MinSourceChars),
		}
	}

	req.Difficulty = NormalizeDifficulty(string(req.Difficulty))

	if req.Type == MaterialTest {
		if req.Questions == 0 {
			req.Questions = DefaultQuestions
		}
		req.Questions = clamp(req.Questions, MinQuestions, MaxQuestions)
	} else {
		req.Questions = 0
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = defaultTitle(req.Type)
	}

	return req, nil
}

// SanitizeSource strips NUL bytes, trims whitespace, and clips over-long
// text keeping the head 60% and tail 40% with a truncation marker.
func SanitizeSource(text string) string {
	t := strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
	if len(t) <= MaxSourceChars {
		return t
	}
	head := t[:MaxSourceChars*6/10]
	tail := t[len(t)-MaxSourceChars*4/10:]
	return strings.TrimSpace(head + "\n\n[...text clipped for length...]\n\n" + tail)
}

func defaultTitle(t MaterialType) string {
	switch t {
	case MaterialTest:
		return "Untitled test"
	case MaterialSummary:
		return "Untitled summary"
	case MaterialStudyGuide:
		return "Untitled study guide"
	case MaterialPresentation:
		return "Untitled presentation"
	default:
		return "Untitled material"
	}
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
