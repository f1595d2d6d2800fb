// Package sizeconv converts between human-readable size strings and byte
// counts. Units are binary (1 KB = 1024 bytes), and every function is a pure,
// stateless operation safe for concurrent use.
package sizeconv

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned for any input outside the accepted grammar:
// malformed strings, unknown units, negative values, and sizes past the cap.
var ErrInvalidFormat = errors.New("invalid size format")

// Binary size unit multipliers.
const (
	B  int64 = 1
	KB int64 = 1024
	MB int64 = 1024 * KB
	GB int64 = 1024 * MB
	TB int64 = 1024 * GB
)

// DefaultMaxBytes caps parsed sizes at 1 PB. The limit is a sanity check on
// configuration values, not a technical bound; use ParseSizeLimit to override.
const DefaultMaxBytes int64 = 1024 * TB

// unitOrder lists units largest-first for human-readable formatting.
var unitOrder = []struct {
	symbol string
	size   int64
}{
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
	{"B", B},
}

var units = map[string]int64{
	"B":  B,
	"KB": KB,
	"MB": MB,
	"GB": GB,
	"TB": TB,
}

// sizePattern matches a non-negative number (integer or decimal) followed by
// optional whitespace and a unit token. Input is uppercased before matching.
var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([KMGT]?B)$`)

// ParseSize converts a human-readable size string to bytes.
//
// Accepts forms like "10 GB", "500MB", "1.5 TB", "100 kb": case insensitive,
// whitespace between number and unit optional. The decimal value is multiplied
// by the unit size and truncated toward zero, so "1.5 KB" is exactly 1536 and
// "0.0001 KB" is 0. Sizes above DefaultMaxBytes are rejected.
func ParseSize(s string) (int64, error) {
	return ParseSizeLimit(s, DefaultMaxBytes)
}

// ParseSizeLimit is ParseSize with a caller-chosen upper bound in bytes.
func ParseSizeLimit(s string, maxBytes int64) (int64, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("%w: size string cannot be empty", ErrInvalidFormat)
	}

	m := sizePattern.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, fmt.Errorf("%w: %q (expected format like '10 GB', '1.5TB', '500MB')", ErrInvalidFormat, s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid numeric value %q", ErrInvalidFormat, m[1])
	}

	// Multiply first, truncate after: rounding here would drift one byte off
	// on fractional inputs.
	bytes := value * float64(units[m[2]])
	if bytes > float64(maxBytes) {
		return 0, fmt.Errorf("%w: size too large: %q", ErrInvalidFormat, s)
	}

	return int64(bytes), nil
}

// FormatBytes converts a byte count to a human-readable string with up to one
// fractional digit, e.g. 1536 -> "1.5 KB". Trailing zeros are stripped, so
// 1024 formats as "1 KB" and 512 as "512 B".
func FormatBytes(n int64) (string, error) {
	return FormatBytesPrec(n, 1)
}

// FormatBytesPrec formats a byte count using the largest unit that fits,
// showing at most decimals fractional digits. Negative counts are rejected.
func FormatBytesPrec(n int64, decimals int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: byte count cannot be negative: %d", ErrInvalidFormat, n)
	}
	if decimals < 0 {
		return "", fmt.Errorf("%w: decimal places cannot be negative: %d", ErrInvalidFormat, decimals)
	}
	if n == 0 {
		return "0 B", nil
	}

	for _, u := range unitOrder {
		if n >= u.size {
			value := float64(n) / float64(u.size)
			formatted := strconv.FormatFloat(value, 'f', decimals, 64)
			if strings.Contains(formatted, ".") {
				formatted = strings.TrimRight(formatted, "0")
				formatted = strings.TrimSuffix(formatted, ".")
			}
			return formatted + " " + u.symbol, nil
		}
	}

	// Unreachable: the B unit always fits a positive count.
	return strconv.FormatInt(n, 10) + " B", nil
}

// ValidateSize reports whether ParseSize would accept s. It never returns an
// error, making it suitable for config validators.
func ValidateSize(s string) bool {
	_, err := ParseSize(s)
	return err == nil
}
