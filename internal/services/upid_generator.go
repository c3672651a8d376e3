package services

import (
	"context"
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultUPIDLength      = 10
	DefaultUPIDRetryFactor = 10
)

// crockfordEncoding is Crockford's base32 alphabet: no I, L, O or U
var crockfordEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// UPIDChecker answers whether candidate codes are already assigned.
// Implementations must read through the caller's transaction.
type UPIDChecker interface {
	IsUPIDTaken(ctx context.Context, upid string) (bool, error)
	FetchTakenUPIDs(ctx context.Context, candidates []string) (map[string]struct{}, error)
}

// UPIDGenerator produces catalog-wide unique product identifiers
type UPIDGenerator struct {
	length      int
	retryFactor int
	synthesize  func() string
	logger      *logrus.Entry
}

// NewUPIDGenerator creates a generator for codes of the given length. A batch of n
// codes may synthesize at most n*retryFactor candidates before giving up.
func NewUPIDGenerator(length, retryFactor int, logger *logrus.Logger) *UPIDGenerator {
	if length <= 0 {
		length = DefaultUPIDLength
	}
	if retryFactor <= 0 {
		retryFactor = DefaultUPIDRetryFactor
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	g := &UPIDGenerator{
		length:      length,
		retryFactor: retryFactor,
		logger:      logger.WithField("component", "upid-generator"),
	}
	g.synthesize = g.randomCode
	return g
}

// WithSynthesizer replaces the random candidate source
func (g *UPIDGenerator) WithSynthesizer(fn func() string) *UPIDGenerator {
	g.synthesize = fn
	return g
}

// randomCode encodes the random bytes of v4 UUIDs, skipping the version and variant bytes
func (g *UPIDGenerator) randomCode() string {
	code := make([]byte, 0, g.length+crockfordEncoding.EncodedLen(14))
	for len(code) < g.length {
		id := uuid.New()
		random := make([]byte, 0, 14)
		random = append(random, id[0:6]...)
		random = append(random, id[7])
		random = append(random, id[9:16]...)
		code = append(code, crockfordEncoding.EncodeToString(random)...)
	}
	return string(code[:g.length])
}

// GenerateUnique returns n distinct codes, none of which the checker reports as taken.
// Each round costs one FetchTakenUPIDs call and only the shortfall is re-synthesized.
func (g *UPIDGenerator) GenerateUnique(ctx context.Context, checker UPIDChecker, n int) ([]string, error) {
	if n < 1 {
		return nil, validationError("identifier count must be at least 1, got %d", n)
	}

	budget := n * g.retryFactor
	accepted := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	synthesized := 0
	rounds := 0

	for len(accepted) < n {
		if synthesized >= budget {
			g.logger.WithFields(logrus.Fields{
				"requested":   n,
				"generated":   len(accepted),
				"synthesized": synthesized,
				"rounds":      rounds,
			}).Error("UPID generation exhausted its retry budget")
			return nil, fmt.Errorf("%w: %d of %d codes after %d candidates", ErrIdentifierExhaustion, len(accepted), n, synthesized)
		}

		want := n - len(accepted)
		if remaining := budget - synthesized; want > remaining {
			want = remaining
		}

		batch := make([]string, 0, want)
		for i := 0; i < want; i++ {
			candidate := g.synthesize()
			synthesized++
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}
			batch = append(batch, candidate)
		}
		if len(batch) == 0 {
			continue
		}

		rounds++
		taken, err := checker.FetchTakenUPIDs(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to check identifier candidates: %w", mapRepositoryError(err))
		}
		for _, candidate := range batch {
			if _, ok := taken[candidate]; !ok {
				accepted = append(accepted, candidate)
			}
		}
	}

	if rounds > 1 {
		g.logger.WithFields(logrus.Fields{
			"requested": n,
			"rounds":    rounds,
		}).Debug("UPID generation needed extra rounds")
	}
	return accepted, nil
}

// GenerateOne returns a single unused code, checking one candidate per round trip
func (g *UPIDGenerator) GenerateOne(ctx context.Context, checker UPIDChecker) (string, error) {
	for attempt := 0; attempt < g.retryFactor; attempt++ {
		candidate := g.synthesize()
		taken, err := checker.IsUPIDTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check identifier candidate: %w", mapRepositoryError(err))
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free code after %d attempts", ErrIdentifierExhaustion, g.retryFactor)
}
