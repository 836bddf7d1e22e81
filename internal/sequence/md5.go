package sequence

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
)

var (
	realMD5Regexp   = regexp.MustCompile(`^[a-f0-9]{32}$`)
	pseudoMD5Regexp = regexp.MustCompile(`^([a-f0-9]{32})(\[(\d+):(\d+)\])?$`)
)

// PseudoMD5 is a content hash with an optional byte range, written
// "<md5>[start:end]".
type PseudoMD5 struct {
	Hash     string
	HasRange bool
	Start    int
	End      int
}

func (p PseudoMD5) String() string {
	if !p.HasRange {
		return p.Hash
	}
	return fmt.Sprintf("%s[%d:%d]", p.Hash, p.Start, p.End)
}

// Hash returns the hex md5 of seq.
func Hash(seq string) string {
	sum := md5.Sum([]byte(seq))
	return hex.EncodeToString(sum[:])
}

// ValidMD5 reports whether s is a bare hex md5.
func ValidMD5(s string) bool { return realMD5Regexp.MatchString(s) }

// ParsePseudoMD5 parses "<md5>" or "<md5>[start:end]".
func ParsePseudoMD5(s string) (PseudoMD5, error) {
	m := pseudoMD5Regexp.FindStringSubmatch(s)
	if m == nil {
		return PseudoMD5{}, fmt.Errorf("pseudo md5 %q: %w", s, ErrInvalidMD5)
	}
	p := PseudoMD5{Hash: m[1]}
	if m[2] == "" {
		return p, nil
	}
	start, err := strconv.Atoi(m[3])
	if err != nil {
		return PseudoMD5{}, fmt.Errorf("pseudo md5 %q: %w", s, ErrInvalidMD5)
	}
	end, err := strconv.Atoi(m[4])
	if err != nil || start >= end {
		return PseudoMD5{}, fmt.Errorf("pseudo md5 %q: %w", s, ErrInvalidMD5)
	}
	p.HasRange, p.Start, p.End = true, start, end
	return p, nil
}

// NewPseudoMD5 ranges hash over [start, end); a zero range yields the bare hash.
func NewPseudoMD5(hash string, start, end int) (PseudoMD5, error) {
	if !ValidMD5(hash) {
		return PseudoMD5{}, fmt.Errorf("md5 %q: %w", hash, ErrInvalidMD5)
	}
	if start == 0 && end == 0 {
		return PseudoMD5{Hash: hash}, nil
	}
	if start < 0 || start >= end {
		return PseudoMD5{}, fmt.Errorf("range [%d:%d]: %w", start, end, ErrInvalidMD5)
	}
	return PseudoMD5{Hash: hash, HasRange: true, Start: start, End: end}, nil
}
