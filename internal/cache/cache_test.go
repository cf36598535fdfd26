package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeCachesWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(5*time.Minute, func() time.Time { return now })

	calls := 0
	compute := func() (any, error) {
		calls++
		return "snapshot", nil
	}

	v, err := c.GetOrCompute("postings", compute)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", v)
	assert.Equal(t, 1, calls)

	now = now.Add(4 * time.Minute)
	v, err = c.GetOrCompute("postings", compute)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", v)
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeRecomputesAfterTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(5*time.Minute, func() time.Time { return now })

	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	_, err := c.GetOrCompute("postings", compute)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	v, err := c.GetOrCompute("postings", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	c := New(time.Hour)

	calls := 0
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	_, err := c.GetOrCompute("postings", compute)
	require.NoError(t, err)

	c.Invalidate("postings")

	v, err := c.GetOrCompute("postings", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestFailedComputeCachesNothing(t *testing.T) {
	c := New(time.Hour)
	boom := errors.New("boom")

	_, err := c.GetOrCompute("postings", func() (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, ok := c.Age("postings")
	assert.False(t, ok)

	v, err := c.GetOrCompute("postings", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestAge(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(5*time.Minute, func() time.Time { return now })

	_, ok := c.Age("postings")
	assert.False(t, ok)

	_, err := c.GetOrCompute("postings", func() (any, error) { return "v", nil })
	require.NoError(t, err)

	now = now.Add(90 * time.Second)
	age, ok := c.Age("postings")
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)

	// an expired entry has no age to report
	now = now.Add(5 * time.Minute)
	_, ok = c.Age("postings")
	assert.False(t, ok)
}
