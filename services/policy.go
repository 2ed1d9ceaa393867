package services

import (
	"fmt"
	"strings"
)

const (
	// DefaultDurationMinutes replaces an unreadable duration under PolicyLenient.
	DefaultDurationMinutes = 120
	// DefaultStops replaces an unreadable stop count under PolicyLenient.
	DefaultStops = 0
)

// FieldPolicy decides what an extractor does when a duration or stop-count
// field is missing or cannot be parsed. Price has no fallback under any policy.
type FieldPolicy int

const (
	// PolicyStrict drops the candidate.
	PolicyStrict FieldPolicy = iota
	// PolicyLenient keeps the candidate with a fixed default value.
	PolicyLenient
)

func (p FieldPolicy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyLenient:
		return "lenient"
	default:
		return fmt.Sprintf("FieldPolicy(%d)", int(p))
	}
}

// ParseFieldPolicy reads "strict" or "lenient".
func ParseFieldPolicy(s string) (FieldPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return PolicyStrict, nil
	case "lenient", "default":
		return PolicyLenient, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown field policy %q (want strict or lenient)", s)
	}
}

// ResolveDuration applies the policy to the outcome of decoding a duration.
// It returns false when the candidate must be dropped.
func (p FieldPolicy) ResolveDuration(minutes int, err error) (int, bool) {
	if err == nil && minutes > 0 {
		return minutes, true
	}
	if p == PolicyLenient {
		return DefaultDurationMinutes, true
	}
	return 0, false
}

// ResolveStops applies the policy to the outcome of decoding a stop count.
func (p FieldPolicy) ResolveStops(stops int, err error) (int, bool) {
	if err == nil && stops >= 0 {
		return stops, true
	}
	if p == PolicyLenient {
		return DefaultStops, true
	}
	return 0, false
}

// Duration parses text and resolves failures with the policy.
func (p FieldPolicy) Duration(text string) (int, bool) {
	return p.ResolveDuration(ParseDuration(text))
}

// Stops parses text and resolves failures with the policy.
func (p FieldPolicy) Stops(text string) (int, bool) {
	return p.ResolveStops(ParseStops(text))
}
