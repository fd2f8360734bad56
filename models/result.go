package models

import (
	"math"
	"strconv"
	"strings"
)

// SearchResult is one matched image/page pair scraped from a results page.
type SearchResult struct {
	// Image is the absolute URL of the matched image.
	Image string `json:"image"`

	// Page is the absolute URL of the page hosting the image.
	Page string `json:"page"`

	Width  Dimension `json:"width"`
	Height Dimension `json:"height"`
}

// Dimension is a pixel size as reported by the search engine.
// Valid is false when the engine emitted a missing or non-numeric value;
// such a dimension encodes as JSON null.
type Dimension struct {
	Value int
	Valid bool
}

// Px returns a valid Dimension of n pixels.
func Px(n int) Dimension {
	return Dimension{Value: n, Valid: true}
}

// ParseDimension reads a pixel size the way a browser's parseInt does:
// surrounding whitespace and an optional sign are skipped, a "0x" prefix
// selects hex, and parsing stops at the first non-digit ("640px" is 640).
// Values too large for an int saturate at math.MaxInt.
// Empty, non-numeric and negative inputs yield an invalid Dimension.
func ParseDimension(s string) Dimension {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	n, digits := 0, 0
	for ; digits < len(s); digits++ {
		d := digitValue(s[digits])
		if d < 0 || d >= base {
			break
		}
		if n > (math.MaxInt-d)/base {
			n = math.MaxInt
		} else {
			n = n*base + d
		}
	}
	if digits == 0 || (neg && n != 0) {
		return Dimension{}
	}
	return Px(n)
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

func (d Dimension) String() string {
	if !d.Valid {
		return "NaN"
	}
	return strconv.Itoa(d.Value)
}

// MarshalJSON encodes a valid dimension as a number and an invalid one as null.
func (d Dimension) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(d.Value)), nil
}

// UnmarshalJSON accepts a number or null.
func (d *Dimension) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Dimension{}
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*d = Px(n)
	return nil
}
