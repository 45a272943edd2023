package identity

import (
	"crypto/rand"

	goerrors "github.com/goliatone/go-errors"
)

// codeAlphabet drops 0/O and 1/I so a code read off a phone screen or
// spelled over voice cannot be mistyped into a sibling character.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength matches what the notification templates expect.
const DefaultCodeLength = 6

// NewVerificationCode returns a random fixed-length code drawn from the
// unambiguous alphabet. Randomness comes from crypto/rand; modulo bias is
// avoided by rejecting bytes outside the largest alphabet multiple.
func NewVerificationCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	limit := 256 - 256%len(codeAlphabet)
	out := make([]byte, 0, length)
	buf := make([]byte, length*2)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes for code")
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
