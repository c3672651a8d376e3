package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setChecker reports codes in taken as assigned and counts round trips
type setChecker struct {
	taken      map[string]struct{}
	fetchCalls int
	checkCalls int
	err        error
}

func newSetChecker(taken ...string) *setChecker {
	c := &setChecker{taken: make(map[string]struct{})}
	for _, code := range taken {
		c.taken[code] = struct{}{}
	}
	return c
}

func (c *setChecker) IsUPIDTaken(ctx context.Context, upid string) (bool, error) {
	c.checkCalls++
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.taken[upid]
	return ok, nil
}

func (c *setChecker) FetchTakenUPIDs(ctx context.Context, candidates []string) (map[string]struct{}, error) {
	c.fetchCalls++
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]struct{})
	for _, candidate := range candidates {
		if _, ok := c.taken[candidate]; ok {
			out[candidate] = struct{}{}
		}
	}
	return out, nil
}

// sequence returns a synthesizer yielding C000000000, C000000001, ...
func sequence() (func() string, *int) {
	n := 0
	return func() string {
		code := fmt.Sprintf("C%09d", n)
		n++
		return code
	}, &n
}

func TestGenerateUnique_SkipsTakenCodes(t *testing.T) {
	ctx := context.Background()
	synth, produced := sequence()

	taken := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		taken = append(taken, fmt.Sprintf("C%09d", i))
	}
	checker := newSetChecker(taken...)

	gen := NewUPIDGenerator(10, 10, nil).WithSynthesizer(synth)
	codes, err := gen.GenerateUnique(ctx, checker, 500)

	require.NoError(t, err)
	assert.Len(t, codes, 500)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		_, isTaken := checker.taken[code]
		assert.False(t, isTaken, "returned a taken code %s", code)
		_, dup := seen[code]
		assert.False(t, dup, "returned %s twice", code)
		seen[code] = struct{}{}
	}
	// one round for the first batch, one for the 100 replacements
	assert.Equal(t, 2, checker.fetchCalls)
	assert.Equal(t, 600, *produced)
}

func TestGenerateUnique_RejectsDuplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	outputs := []string{"AAAAAAAAAA", "AAAAAAAAAA", "BBBBBBBBBB"}
	i := 0
	gen := NewUPIDGenerator(10, 10, nil).WithSynthesizer(func() string {
		code := outputs[i%len(outputs)]
		i++
		return code
	})

	codes, err := gen.GenerateUnique(ctx, newSetChecker(), 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"AAAAAAAAAA", "BBBBBBBBBB"}, codes)
}

func TestGenerateUnique_ExhaustionIsFatal(t *testing.T) {
	ctx := context.Background()
	calls := 0
	gen := NewUPIDGenerator(10, 4, nil).WithSynthesizer(func() string {
		calls++
		return "TAKEN00000"
	})

	codes, err := gen.GenerateUnique(ctx, newSetChecker("TAKEN00000"), 3)

	assert.Nil(t, codes)
	assert.True(t, errors.Is(err, ErrIdentifierExhaustion))
	assert.Equal(t, 12, calls)
}

func TestGenerateUnique_NeverReturnsFewerThanRequested(t *testing.T) {
	ctx := context.Background()
	synth, _ := sequence()
	// every other code is taken and the budget only allows one extra candidate per code
	taken := make([]string, 0)
	for i := 0; i < 40; i += 2 {
		taken = append(taken, fmt.Sprintf("C%09d", i))
	}
	gen := NewUPIDGenerator(10, 1, nil).WithSynthesizer(synth)

	codes, err := gen.GenerateUnique(ctx, newSetChecker(taken...), 10)

	assert.Nil(t, codes)
	assert.True(t, errors.Is(err, ErrIdentifierExhaustion))
}

func TestGenerateUnique_InvalidCount(t *testing.T) {
	gen := NewUPIDGenerator(10, 10, nil)

	_, err := gen.GenerateUnique(context.Background(), newSetChecker(), 0)

	assert.True(t, errors.Is(err, ErrValidation))
}

func TestGenerateUnique_PropagatesCheckerError(t *testing.T) {
	checker := newSetChecker()
	checker.err = errors.New("connection reset")
	gen := NewUPIDGenerator(10, 10, nil)

	_, err := gen.GenerateUnique(context.Background(), checker, 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGenerateUnique_DefaultCodesAreCrockfordBase32(t *testing.T) {
	gen := NewUPIDGenerator(DefaultUPIDLength, DefaultUPIDRetryFactor, nil)

	codes, err := gen.GenerateUnique(context.Background(), newSetChecker(), 200)

	require.NoError(t, err)
	for _, code := range codes {
		assert.Len(t, code, DefaultUPIDLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune("0123456789ABCDEFGHJKMNPQRSTVWXYZ", r), "unexpected character %q in %s", r, code)
		}
	}
}

func TestRandomCode_LongerThanOneUUID(t *testing.T) {
	gen := NewUPIDGenerator(40, DefaultUPIDRetryFactor, nil)

	assert.Len(t, gen.randomCode(), 40)
}

func TestGenerateOne_RetriesUntilFree(t *testing.T) {
	synth, _ := sequence()
	checker := newSetChecker("C000000000", "C000000001", "C000000002")
	gen := NewUPIDGenerator(10, 10, nil).WithSynthesizer(synth)

	code, err := gen.GenerateOne(context.Background(), checker)

	require.NoError(t, err)
	assert.Equal(t, "C000000003", code)
	assert.Equal(t, 4, checker.checkCalls)
}

func TestGenerateOne_Exhaustion(t *testing.T) {
	gen := NewUPIDGenerator(10, 3, nil).WithSynthesizer(func() string { return "TAKEN00000" })
	checker := newSetChecker("TAKEN00000")

	_, err := gen.GenerateOne(context.Background(), checker)

	assert.True(t, errors.Is(err, ErrIdentifierExhaustion))
	assert.Equal(t, 3, checker.checkCalls)
}
