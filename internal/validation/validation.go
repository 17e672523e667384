package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-companion/internal/models"
)

// ErrQueryEmpty is returned when a query is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("query is required")

// ErrQueryTooShort is returned when query length is below the minimum.
var ErrQueryTooShort = errors.New("query too short")

// ErrQueryTooLong is returned when query length exceeds the maximum.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when a query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrCoordinateOutOfRange is returned when latitude or longitude is outside its valid range.
var ErrCoordinateOutOfRange = errors.New("coordinate out of range")

var validate = validator.New()

// Validator returns the shared struct validator so other packages reuse one cache of struct metadata.
func Validator() *validator.Validate {
	return validate
}

// ValidateQuery trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to characters that appear in place names: letters (Unicode), digits,
// space, comma, hyphen, period, apostrophe.
// Returns the trimmed string.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// QueryLength returns the rune count of the trimmed input.
func QueryLength(input string) int {
	return len([]rune(strings.TrimSpace(input)))
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateCoordinate checks latitude in [-90,90] and longitude in [-180,180].
func ValidateCoordinate(c models.Coordinate) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrCoordinateOutOfRange, c)
	}
	return nil
}
