// Package genid generates human-readable public identifiers of the form
// <slug>_<timestamp>_<suffix>: a lowercased name slug, a compact minute
// timestamp, and a short random suffix. Uniqueness is enforced by the caller
// retrying with a fresh suffix on collision.
package genid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const (
	maxSlugLen  = 15
	suffixLen   = 4
	suffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// MaxAttempts is the bounded number of collision retries callers should make
// before giving up.
const MaxAttempts = 10

// New returns an identifier derived from name and now. Successive calls with
// identical inputs differ in the random suffix.
func New(name string, now time.Time) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%s", Slug(name), now.Format("0601021504"), suffix), nil
}

// Slug lowercases name, turns whitespace runs into underscores, strips
// everything else but ascii letters and digits, and truncates to a fixed
// maximum length. An empty or fully stripped name yields "patient" so the id
// always has a readable prefix.
func Slug(name string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(name)), "_")

	var b strings.Builder
	for _, r := range joined {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
			if b.Len() >= maxSlugLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "patient"
	}
	return b.String()
}

func randomSuffix() (string, error) {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	out := make([]byte, suffixLen)
	for i, b := range buf {
		out[i] = suffixChars[int(b)%len(suffixChars)]
	}
	return string(out), nil
}
