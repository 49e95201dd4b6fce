package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptBudget(t *testing.T) {
	b := newAttemptBudget("k1", 2)
	require.NoError(t, b.Check())
	require.NoError(t, b.Check())

	err := b.Check()
	require.Error(t, err)
	assert.True(t, IsBudgetError(err))
	assert.True(t, IsBudgetError(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, `add entry "k1": no free identifier after 2 attempts (limit 2)`, err.Error())
	assert.Equal(t, 3, b.Used())
}

func TestIsBudgetError_Other(t *testing.T) {
	assert.False(t, IsBudgetError(nil))
	assert.False(t, IsBudgetError(fmt.Errorf("plain")))
}

func TestLogicalClock(t *testing.T) {
	c := NewLogicalClock(100)
	assert.Equal(t, int64(100), c.Current())
	assert.Equal(t, int64(101), c.Now())
	assert.Equal(t, int64(102), c.Now())
	assert.Equal(t, int64(102), c.Current())
}

func TestSystemClock(t *testing.T) {
	a := SystemClock{}.Now()
	b := SystemClock{}.Now()
	assert.Positive(t, a)
	assert.GreaterOrEqual(t, b, a)
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "a", g.Generate())

	assert.Equal(t, "op", NewFixedGenerator().Generate())
}

func TestKeyLocks_SerializesSameKey(t *testing.T) {
	locks := newKeyLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("k")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locks.size())
}

func TestKeyLocks_DistinctKeysDoNotBlock(t *testing.T) {
	locks := newKeyLocks()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	assert.Equal(t, 2, locks.size())
	unlockA()
	unlockB()
	assert.Zero(t, locks.size())
}
