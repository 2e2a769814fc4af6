package credits

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound is returned when an account id or email resolves
	// to nothing. Surfaced to HTTP callers as an authentication failure.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken is returned when creating an account with an email
	// that is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrMaterialNotFound is returned when a material id does not exist
	// or is owned by a different account.
	ErrMaterialNotFound = errors.New("material not found")

	// ErrInvalidRequest is the class of user-input validation failures.
	// Match with errors.Is; the concrete value is an *InvalidRequestError
	// carrying the specific reason.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrInsufficientCredits is the class of rejected debits. Match with
	// errors.Is; the concrete value is an *InsufficientCreditsError
	// carrying the remaining balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrProviderUnavailable is returned when the content provider fails,
	// times out, or is not configured. The request is retryable and no
	// credits were debited.
	ErrProviderUnavailable = errors.New("content provider unavailable")
)

// InvalidRequestError reports why a generation request was rejected
// before any external call was made.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid generation request: %s", e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRequest) match.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// InsufficientCreditsError reports a rejected debit together with the
// balance at rejection time, so callers can show an upgrade prompt.
type InsufficientCreditsError struct {
	Remaining int
	Cost      int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, %d remaining", e.Cost, e.Remaining)
}

// Is makes errors.Is(err, ErrInsufficientCredits) match.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
