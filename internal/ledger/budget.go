package ledger

// DefaultMaxIDAttempts bounds the identifier collision loop.
const DefaultMaxIDAttempts = 64

// attemptBudget counts identifier derivations within one AddEntry.
type attemptBudget struct {
	key     string
	limit   int
	current int
}

func newAttemptBudget(key string, limit int) *attemptBudget {
	return &attemptBudget{key: key, limit: limit}
}

// Check counts one attempt and fails once the limit is passed.
func (b *attemptBudget) Check() error {
	b.current++
	if b.current > b.limit {
		return &BudgetExceededError{
			Key:      b.key,
			Attempts: b.current - 1,
			Limit:    b.limit,
		}
	}
	return nil
}

// Used returns the number of attempts counted so far.
func (b *attemptBudget) Used() int {
	return b.current
}
