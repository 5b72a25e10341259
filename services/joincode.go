package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	DefaultJoinCodeLength   = 4
	DefaultJoinCodeAlphabet = "0123456789"
	DefaultJoinCodeAttempts = 5
)

// CodeChecker reports whether a join code is held by an active session.
type CodeChecker interface {
	ActiveJoinCodeExists(ctx context.Context, restaurantID uint, code string) (bool, error)
}

// JoinCodeGenerator draws short codes for diners to type in at the table.
type JoinCodeGenerator struct {
	length   int
	alphabet []rune
	attempts int
}

func NewJoinCodeGenerator(length int, alphabet string, attempts int) (*JoinCodeGenerator, error) {
	symbols := []rune(alphabet)
	switch {
	case length < 1 || length > 16:
		return nil, fmt.Errorf("join code length must be between 1 and 16, got %d", length)
	case len(symbols) < 2:
		return nil, fmt.Errorf("join code alphabet needs at least 2 symbols")
	case attempts < 1:
		return nil, fmt.Errorf("join code attempts must be positive, got %d", attempts)
	}
	seen := make(map[rune]struct{}, len(symbols))
	for _, r := range symbols {
		if _, dup := seen[r]; dup {
			return nil, fmt.Errorf("join code alphabet repeats %q", r)
		}
		seen[r] = struct{}{}
	}
	return &JoinCodeGenerator{length: length, alphabet: symbols, attempts: attempts}, nil
}

// DefaultJoinCodeGenerator -> 4 digit codes, 5 attempts
func DefaultJoinCodeGenerator() *JoinCodeGenerator {
	g, _ := NewJoinCodeGenerator(DefaultJoinCodeLength, DefaultJoinCodeAlphabet, DefaultJoinCodeAttempts)
	return g
}

func (g *JoinCodeGenerator) Attempts() int {
	return g.attempts
}

// Draw returns one random code without checking it.
func (g *JoinCodeGenerator) Draw() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw join code: %w", err)
		}
		b.WriteRune(g.alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Generate returns a code no active session of the restaurant holds.
// Closed and cancelled sessions never block a code. The check is advisory:
// the unique index on active codes settles races at insert time.
func (g *JoinCodeGenerator) Generate(ctx context.Context, checker CodeChecker, restaurantID uint) (string, error) {
	for attempt := 0; attempt < g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Draw()
		if err != nil {
			return "", Internal("failed to generate join code", err)
		}
		taken, err := checker.ActiveJoinCodeExists(ctx, restaurantID, code)
		if err != nil {
			return "", wrapStore(err, "failed to check join code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", &Error{
		Kind:    KindResourceExhausted,
		Message: fmt.Sprintf("no free join code after %d attempts", g.attempts),
	}
}
