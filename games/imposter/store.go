package imposter

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
)

// Store owns the code -> session mapping. Implementations must serialize
// Mutate calls per code and must never hand out live references: Get and
// the Mutate return value are snapshots.
type Store interface {
	// Put inserts a new session, failing with errCodeInUse on collision.
	Put(s Session) error
	// Get returns a deep-copy snapshot of the session.
	Get(code string) (Session, error)
	// Mutate applies fn to the session under per-code exclusion and
	// returns a snapshot of the committed result. If fn errors, nothing
	// is committed.
	Mutate(code string, fn func(*Session) error) (Session, error)
	// Delete removes the session. Unknown codes are a no-op.
	Delete(code string) error
	Close() error
}

// Ambiguity-free alphabet: no I, O, 0, 1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the session code length unless configured otherwise.
const DefaultCodeLength = 6

// newCode draws each character unbiased-uniformly from the alphabet.
func newCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
