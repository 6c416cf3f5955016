// Package cron parses standard 5-field cron expressions
// (minute hour day-of-month month day-of-week) and computes the next firing
// time with a forward scan bounded to one year. Day-of-week numbering
// follows time.Weekday: 0=Sunday .. 6=Saturday.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// scanBound limits how far Next searches for an occurrence. An expression
// with no matching minute inside the bound is treated as unsatisfiable.
const scanBound = 366 * 24 * time.Hour

// ErrNoOccurrence reports that no matching minute exists within the scan bound.
var ErrNoOccurrence = fmt.Errorf("cron: no matching time within one year")

// validator is a syntactic gate; the field parsers below remain the
// authority on what this package accepts.
var validator = gronx.New()

// ---------------------------------------------------------------------------
// Schedule
// ---------------------------------------------------------------------------

// Schedule is a parsed cron expression.
type Schedule struct {
	expression string
	minute     fieldSpec
	hour       fieldSpec
	dayOfMonth fieldSpec
	month      fieldSpec
	dayOfWeek  fieldSpec
}

// Parse parses a 5-field cron expression.
func Parse(expression string) (*Schedule, error) {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d in %q", len(fields), expression)
	}
	if !validator.IsValid(expression) {
		return nil, fmt.Errorf("cron: invalid expression %q", expression)
	}

	s := &Schedule{expression: expression}
	specs := []struct {
		target   *fieldSpec
		raw      string
		min, max int
		name     string
	}{
		{&s.minute, fields[0], 0, 59, "minute"},
		{&s.hour, fields[1], 0, 23, "hour"},
		{&s.dayOfMonth, fields[2], 1, 31, "day-of-month"},
		{&s.month, fields[3], 1, 12, "month"},
		{&s.dayOfWeek, fields[4], 0, 6, "day-of-week"},
	}
	for _, spec := range specs {
		parsed, err := parseField(spec.raw, spec.min, spec.max, spec.name)
		if err != nil {
			return nil, err
		}
		*spec.target = parsed
	}
	return s, nil
}

// String returns the original expression.
func (s *Schedule) String() string { return s.expression }

// Next returns the first minute strictly after the given time at which the
// schedule fires. The scan checks minute, hour, day-of-month, month, and
// day-of-week together; all five must match.
func (s *Schedule) Next(after time.Time) (time.Time, error) {
	loc := after.Location()
	t := time.Date(after.Year(), after.Month(), after.Day(), after.Hour(), after.Minute(), 0, 0, loc)
	t = t.Add(time.Minute)
	bound := after.Add(scanBound)

	for t.Before(bound) {
		switch {
		case !s.month.matches(int(t.Month())):
			// Jump to the first minute of the next month.
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
		case !s.dayOfMonth.matches(t.Day()) || !s.dayOfWeek.matches(int(t.Weekday())):
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		case !s.hour.matches(t.Hour()):
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Add(time.Hour)
		case !s.minute.matches(t.Minute()):
			t = t.Add(time.Minute)
		default:
			return t, nil
		}
	}
	return time.Time{}, ErrNoOccurrence
}

// ---------------------------------------------------------------------------
// Field parsing
// ---------------------------------------------------------------------------

// fieldSpec is a parsed cron field: a set of tokens split on commas, any of
// which may match a candidate value.
type fieldSpec struct {
	tokens []token
}

func (f fieldSpec) matches(value int) bool {
	for _, tok := range f.tokens {
		if tok.matches(value) {
			return true
		}
	}
	return false
}

// token is one comma-separated term: "*", "a-b", "base/step", "*/step",
// or a literal integer.
type token struct {
	any     bool
	isRange bool
	lo, hi  int
	isStep  bool
	base    int
	step    int
	literal int
}

func (t token) matches(value int) bool {
	switch {
	case t.any:
		return true
	case t.isStep:
		return value >= t.base && (value-t.base)%t.step == 0
	case t.isRange:
		return value >= t.lo && value <= t.hi
	default:
		return value == t.literal
	}
}

func parseField(raw string, min, max int, name string) (fieldSpec, error) {
	var spec fieldSpec
	for _, term := range strings.Split(raw, ",") {
		tok, err := parseToken(term, min, max, name)
		if err != nil {
			return fieldSpec{}, err
		}
		spec.tokens = append(spec.tokens, tok)
	}
	return spec, nil
}

func parseToken(term string, min, max int, name string) (token, error) {
	if term == "*" {
		return token{any: true}, nil
	}

	if base, step, ok := strings.Cut(term, "/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n < 1 {
			return token{}, fmt.Errorf("cron: bad step %q in %s field", term, name)
		}
		if base == "*" {
			return token{isStep: true, base: min, step: n}, nil
		}
		b, err := parseValue(base, min, max, name)
		if err != nil {
			return token{}, err
		}
		return token{isStep: true, base: b, step: n}, nil
	}

	if lo, hi, ok := strings.Cut(term, "-"); ok {
		l, err := parseValue(lo, min, max, name)
		if err != nil {
			return token{}, err
		}
		h, err := parseValue(hi, min, max, name)
		if err != nil {
			return token{}, err
		}
		if l > h {
			return token{}, fmt.Errorf("cron: inverted range %q in %s field", term, name)
		}
		return token{isRange: true, lo: l, hi: h}, nil
	}

	v, err := parseValue(term, min, max, name)
	if err != nil {
		return token{}, err
	}
	return token{literal: v}, nil
}

func parseValue(raw string, min, max int, name string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("cron: %q is not a number in %s field", raw, name)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("cron: %s value %d out of range [%d, %d]", name, v, min, max)
	}
	return v, nil
}
