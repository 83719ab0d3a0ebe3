// Package ports expands textual port specifications such as "22,80,8000-8100"
// into sorted, deduplicated port sets.
package ports

import (
	"slices"
	"strconv"
	"strings"

	"github.com/anstrom/portprobe/internal/errors"
)

const (
	minPort = 1
	maxPort = 65535

	tokenSeparator = ","
	rangeSeparator = "-"
)

// Set is an ascending list of unique TCP ports.
type Set []uint16

// Expand parses spec into a Set. Tokens are separated by commas and are either
// a single port or an inclusive range "A-B". Reversed ranges are normalised.
// Any malformed token fails the whole spec.
func Expand(spec string) (Set, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.ErrEmptyPortSpec()
	}

	var out []uint16
	for _, raw := range strings.Split(spec, tokenSeparator) {
		token := strings.TrimSpace(raw)
		if token == "" {
			return nil, errors.NewParseError("Empty token in port specification", raw)
		}

		lo, hi, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			out = append(out, uint16(p))
		}
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

// parseToken returns the inclusive bounds covered by one token.
func parseToken(token string) (lo, hi int, err error) {
	left, right, isRange := strings.Cut(token, rangeSeparator)
	if !isRange {
		p, err := parsePort(token, token)
		return p, p, err
	}

	a, err := parsePort(left, token)
	if err != nil {
		return 0, 0, err
	}
	b, err := parsePort(right, token)
	if err != nil {
		return 0, 0, err
	}
	return min(a, b), max(a, b), nil
}

func parsePort(s, token string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewParseError("Range is missing a bound", token)
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.WrapParseError("Invalid port number", token, err)
	}
	if p < minPort || p > maxPort {
		return 0, errors.NewParseError("Port out of range 1-65535", token)
	}
	return p, nil
}

// Len returns the number of ports in the set.
func (s Set) Len() int {
	return len(s)
}

// Contains reports whether port is in the set.
func (s Set) Contains(port uint16) bool {
	_, found := slices.BinarySearch(s, port)
	return found
}

// String compacts the set back into canonical spec form, e.g. "22,80-82".
func (s Set) String() string {
	var b strings.Builder
	for i := 0; i < len(s); {
		j := i
		for j+1 < len(s) && s[j+1] == s[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteString(tokenSeparator)
		}
		b.WriteString(strconv.Itoa(int(s[i])))
		if j > i {
			b.WriteString(rangeSeparator)
			b.WriteString(strconv.Itoa(int(s[j])))
		}
		i = j + 1
	}
	return b.String()
}
