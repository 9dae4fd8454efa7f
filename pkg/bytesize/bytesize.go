// Package bytesize converts the human-readable byte quantities shown on
// the router's status page into byte counts.
package bytesize

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrParse is wrapped by every parse failure.
var ErrParse = errors.New("malformed byte quantity")

// The status page uses decimal (SI) units; the binary forms are accepted
// for completeness.
var multipliers = map[string]float64{
	"b":  1,
	"kb": 1e3,
	"mb": 1e6,
	"gb": 1e9,
	"tb": 1e12,
	"pb": 1e15,

	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
	"pib": 1 << 50,
}

// Parse converts a quantity like "1.2 GB" into a byte count. Suffixes
// are case-insensitive and the space before them is optional.
func Parse(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, errors.Wrap(ErrParse, "empty value")
	}

	split := strings.IndexFunc(trimmed, func(r rune) bool {
		return r != '.' && (r < '0' || r > '9')
	})
	if split <= 0 {
		return 0, errors.Wrapf(ErrParse, "no unit suffix in %q", s)
	}

	magnitude, err := strconv.ParseFloat(trimmed[:split], 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParse, "bad magnitude in %q", s)
	}

	unit := strings.ToLower(strings.TrimSpace(trimmed[split:]))
	multiplier, ok := multipliers[unit]
	if !ok {
		return 0, errors.Wrapf(ErrParse, "unknown unit %q", strings.TrimSpace(trimmed[split:]))
	}

	return int64(math.Round(magnitude * multiplier)), nil
}
