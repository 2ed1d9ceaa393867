package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// priceRunRegexp captures the first numeric run including separators
	priceRunRegexp = regexp.MustCompile(`\d(?:[\d.,']*\d)?`)
	// groupedDigitsRegexp matches thousands groups split by a space: "1 234"
	groupedDigitsRegexp = regexp.MustCompile(`(\d) (\d{3})\b`)

	hoursRegexp   = regexp.MustCompile(`(\d+)\s*h`)
	minutesRegexp = regexp.MustCompile(`(\d+)\s*m`)
	bareRegexp    = regexp.MustCompile(`\d+`)
	trailingMins  = regexp.MustCompile(`^\s*(\d{1,2})\b`)

	stopsCountRegexp = regexp.MustCompile(`(\d+)\s*(?:stops?|escalas?|scal[ei]|escales?|stopps?|zwischenstopps?|paradas?)`)
	stopsOnlyRegexp  = regexp.MustCompile(`^\s*(\d+)\s*$`)
)

// zeroStopPhrases are the phrasings that mean a flight has no stop.
// They match whole words only, so "indirect" is not a zero-stop phrase.
var zeroStopPhrases = []string{
	"nonstop",
	"non-stop",
	"direct",
	"directo",
	"directa",
	"direto",
	"diretto",
	"direkt",
	"sin escalas",
	"sans escale",
	"senza scalo",
	"ohne zwischenstopp",
}

var zeroStopRegexp = regexp.MustCompile(`\b(?:` + quoteAll(zeroStopPhrases) + `)\b`)

func quoteAll(phrases []string) string {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, "|")
}

// ErrMissing marks a field that was not present in a candidate at all.
var ErrMissing = errors.New("field missing")

// ParseError is returned when a field's raw text cannot be interpreted.
type ParseError struct {
	Field string
	Raw   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s from %q", e.Field, e.Raw)
}

// ParsePrice extracts a price from display text.
// Examples:
//
//	"1.234,56 €" → 1234.56
//	"1,234.56"   → 1234.56
//	"€123"       → 123
//	"1 234 €"    → 1234
func ParsePrice(text string) (float64, error) {
	t := normaliseText(text)
	// A match consumes the digit the following group needs, so repeat until stable.
	for {
		joined := groupedDigitsRegexp.ReplaceAllString(t, "$1$2")
		if joined == t {
			break
		}
		t = joined
	}

	run := priceRunRegexp.FindString(t)
	if run == "" {
		return 0, &ParseError{Field: "price", Raw: text}
	}

	val, err := strconv.ParseFloat(normaliseNumber(run), 64)
	if err != nil {
		return 0, &ParseError{Field: "price", Raw: text}
	}
	return val, nil
}

// normaliseNumber turns a locale-formatted digit run into a Go float literal.
// The last separator is the decimal mark when 1 or 2 digits follow it;
// every other separator is a thousands mark.
func normaliseNumber(run string) string {
	last := strings.LastIndexAny(run, ".,'")
	if last < 0 {
		return run
	}

	decimals := len(run) - last - 1
	intPart := run[:last]
	fracPart := run[last+1:]
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '.' || r == ',' || r == '\'' {
				return -1
			}
			return r
		}, s)
	}

	if run[last] != '\'' && decimals >= 1 && decimals <= 2 {
		return strip(intPart) + "." + fracPart
	}
	return strip(run)
}

// ParseDuration converts display text such as "3h 10m", "2 h", "55 min",
// "1h05" or "3:10" into minutes.
func ParseDuration(text string) (int, error) {
	t := strings.ToLower(normaliseText(text))

	hours, minutes := 0, 0
	hm := hoursRegexp.FindStringSubmatchIndex(t)
	mm := minutesRegexp.FindStringSubmatch(t)

	switch {
	case hm != nil || mm != nil:
		if hm != nil {
			hours, _ = strconv.Atoi(t[hm[2]:hm[3]])
		}
		if mm != nil {
			minutes, _ = strconv.Atoi(mm[1])
		} else if hm != nil {
			rest := strings.TrimLeftFunc(t[hm[1]:], unicode.IsLetter)
			if m := trailingMins.FindStringSubmatch(rest); m != nil {
				minutes, _ = strconv.Atoi(m[1])
			}
		}
	default:
		nums := bareRegexp.FindAllString(t, -1)
		switch len(nums) {
		case 1:
			minutes, _ = strconv.Atoi(nums[0])
		case 2:
			hours, _ = strconv.Atoi(nums[0])
			minutes, _ = strconv.Atoi(nums[1])
		default:
			return 0, &ParseError{Field: "duration", Raw: text}
		}
	}

	total := hours*60 + minutes
	if total <= 0 {
		return 0, &ParseError{Field: "duration", Raw: text}
	}
	return total, nil
}

// ParseStops converts display text such as "Directo", "Nonstop" or "2 escalas"
// into a stop count.
func ParseStops(text string) (int, error) {
	t := strings.ToLower(normaliseText(text))

	if m := stopsCountRegexp.FindStringSubmatch(t); m != nil {
		return strconv.Atoi(m[1])
	}
	if m := stopsOnlyRegexp.FindStringSubmatch(t); m != nil {
		return strconv.Atoi(m[1])
	}
	if zeroStopRegexp.MatchString(t) {
		return 0, nil
	}
	return 0, &ParseError{Field: "stops", Raw: text}
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace,
// including no-break and narrow no-break spaces.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
