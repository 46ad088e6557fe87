// Package validate checks the report time window and verdict filter before
// any network call is made.
//
// Absolute dates are epoch seconds. Relative dates are passed through to the
// API verbatim ("-7days", "now", ...).
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
)

// Kind distinguishes relative from absolute date expressions.
type Kind int

const (
	Invalid Kind = iota
	Relative
	Absolute
)

func (k Kind) String() string {
	switch k {
	case Relative:
		return "relative"
	case Absolute:
		return "absolute"
	default:
		return "invalid"
	}
}

var relativeWords = []string{"days", "weeks", "minutes", "seconds", "now"}

// Verdicts are the accepted verdict filter values.
var Verdicts = []string{"allowed", "blocked", "proxied"}

// Now is the clock used for absolute dates.
var Now = time.Now

// DateKind classifies value without checking it against the clock.
func DateKind(value string) Kind {
	for _, w := range relativeWords {
		if strings.Contains(value, w) {
			return Relative
		}
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return Absolute
	}
	return Invalid
}

// CheckDate returns value unchanged when it is a relative expression, and
// trimmed of surrounding whitespace when it is an epoch-seconds timestamp that
// is not in the future.
func CheckDate(value string) (string, error) {
	switch DateKind(value) {
	case Relative:
		return value, nil
	case Absolute:
		trimmed := strings.TrimSpace(value)
		ts, _ := strconv.ParseInt(trimmed, 10, 64)
		if ts > Now().Unix() {
			return "", fmt.Errorf("%w: date %q is in the future", errs.ErrInvalidArgument, value)
		}
		return trimmed, nil
	default:
		return "", fmt.Errorf("%w: date %q is neither a relative time (e.g. -1days) nor an epoch timestamp", errs.ErrInvalidArgument, value)
	}
}

// ValidateDates checks both ends of the window and rejects mixing a relative
// with an absolute date.
func ValidateDates(from, to string) error {
	if _, err := CheckDate(from); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if _, err := CheckDate(to); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if fk, tk := DateKind(from), DateKind(to); fk != tk {
		return fmt.Errorf("%w: from (%s) and to (%s) must both be relative or both absolute", errs.ErrInvalidArgument, fk, tk)
	}
	return nil
}

// ValidateVerdict normalizes a comma-separated verdict list. Entries are
// trimmed and lower-cased; empty input means no filter and returns "".
func ValidateVerdict(verdict string) (string, error) {
	if strings.TrimSpace(verdict) == "" {
		return "", nil
	}
	parts := strings.Split(verdict, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.ToLower(strings.TrimSpace(p))
		if !isVerdict(v) {
			return "", fmt.Errorf("%w: verdict %q, expected one of %s", errs.ErrInvalidArgument, strings.TrimSpace(p), strings.Join(Verdicts, ", "))
		}
		out = append(out, v)
	}
	return strings.Join(out, ","), nil
}

func isVerdict(v string) bool {
	for _, allowed := range Verdicts {
		if v == allowed {
			return true
		}
	}
	return false
}
