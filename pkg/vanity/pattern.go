package vanity

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Digest is an output of a hash function.
type Digest = []byte

// TargetPattern is the sequence of bytes a digest has to start with.
type TargetPattern []byte

// ParseHex decodes a hex string. Surrounding spaces and a "0x"/"0X"
// prefix are ignored.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s' as hex: %w", s, err)
	}
	return b, nil
}

// ParseTargetPattern parses a hex representation of a pattern, like "1626ba7e".
func ParseTargetPattern(s string) (TargetPattern, error) {
	b, err := ParseHex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid target pattern: %w", err)
	}
	return TargetPattern(b), nil
}

// MatchLength returns how many leading bytes of the digest are equal to
// the pattern. It stops on the first mismatch.
func (p TargetPattern) MatchLength(digest Digest) int {
	n := len(p)
	if len(digest) < n {
		n = len(digest)
	}
	for idx := 0; idx < n; idx++ {
		if digest[idx] != p[idx] {
			return idx
		}
	}
	return n
}

// IsFullMatch returns true if the digest starts with the whole pattern.
func (p TargetPattern) IsFullMatch(digest Digest) bool {
	return len(p) > 0 && p.MatchLength(digest) == len(p)
}

// IsPartialMatch returns true if the first `partialLength` bytes of the
// digest match the pattern. A zero `partialLength` never matches.
func (p TargetPattern) IsPartialMatch(digest Digest, partialLength uint) bool {
	if partialLength == 0 {
		return false
	}
	return uint(p.MatchLength(digest)) >= partialLength
}

func (p TargetPattern) String() string {
	return fmt.Sprintf("%X", []byte(p))
}
