package meter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxSerialLen matches serials.serial_number VARCHAR(20).
	MaxSerialLen = 20
	// MaxDescriptionLen matches meter_descriptions.description VARCHAR(50).
	MaxDescriptionLen = 50
)

var (
	ErrNotNumber       = errors.New("meter: input is not a number")
	ErrOutOfRange      = errors.New("meter: value out of range")
	ErrEmpty           = errors.New("meter: empty input")
	ErrTooLong         = errors.New("meter: input too long")
	ErrDuplicateSerial = errors.New("meter: duplicate serial number")
	ErrNegative        = errors.New("meter: negative reading")
	ErrBelowPrevious   = errors.New("meter: reading below previous value")
)

// SerialCountError reports a serial list whose length differs from the declared count.
type SerialCountError struct {
	Expected int
	Got      int
}

func (e *SerialCountError) Error() string {
	return fmt.Sprintf("meter: expected %d serial numbers, got %d", e.Expected, e.Got)
}

// ParseApartment accepts an integer within [min, max].
func ParseApartment(text string, min, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrNotNumber
	}
	if n < min || n > max {
		return 0, ErrOutOfRange
	}
	return n, nil
}

// ParseCount accepts a single integer inside the type's allowed range.
func ParseCount(t Type, text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrNotNumber
	}
	lo, hi := t.CountRange()
	if n < lo || n > hi {
		return 0, ErrOutOfRange
	}
	return n, nil
}

// ParseSerials splits whitespace separated serial numbers and requires exactly count of them.
func ParseSerials(text string, count int) ([]string, error) {
	serials := strings.Fields(text)
	if len(serials) != count {
		return nil, &SerialCountError{Expected: count, Got: len(serials)}
	}
	seen := make(map[string]struct{}, len(serials))
	for _, s := range serials {
		if err := ValidateSerial(s); err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			return nil, ErrDuplicateSerial
		}
		seen[s] = struct{}{}
	}
	return serials, nil
}

// ValidateSerial checks a single serial number against the column limits.
func ValidateSerial(s string) error {
	switch {
	case s == "":
		return ErrEmpty
	case utf8.RuneCountInString(s) > MaxSerialLen:
		return ErrTooLong
	}
	return nil
}

// ParseDescription trims free text and checks the column limit.
func ParseDescription(text string) (string, error) {
	d := strings.TrimSpace(text)
	switch {
	case d == "":
		return "", ErrEmpty
	case utf8.RuneCountInString(d) > MaxDescriptionLen:
		return "", ErrTooLong
	}
	return d, nil
}

// ParseValue parses a reading; both "12.5" and "12,5" are accepted.
func ParseValue(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotNumber
	}
	if v < 0 {
		return 0, ErrNegative
	}
	return v, nil
}

// CheckMonotonic enforces that meters never run backwards. A nil previous
// reading accepts any value.
func CheckMonotonic(value float64, previous *Reading) error {
	if previous != nil && value < previous.Value {
		return ErrBelowPrevious
	}
	return nil
}
