package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/compliance/internal/access"
)

// BudgetExceededError is returned when AddEntry cannot find a free
// identifier within the configured number of attempts. The append is
// rolled back.
type BudgetExceededError struct {
	Key      string // Key being appended to
	Attempts int    // Identifiers tried
	Limit    int    // Configured maximum
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("add entry %q: no free identifier after %d attempts (limit %d)",
		e.Key, e.Attempts, e.Limit)
}

// IsBudgetError returns true if err is a BudgetExceededError.
// Uses errors.As to handle wrapped errors.
func IsBudgetError(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}

// IsAuthorizationError returns true if err is an access.AuthorizationError.
func IsAuthorizationError(err error) bool {
	return access.IsAuthorizationError(err)
}
