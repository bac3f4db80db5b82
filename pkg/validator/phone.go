package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrInvalidLength indicates phone number length is not 10 digits
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with a mobile prefix
	ErrInvalidPrefix = errors.New("phone number must start with a mobile prefix (070-072, 074-078)")
)

// DefaultPrefixes are the mobile operator prefixes accepted for passenger phones
var DefaultPrefixes = []string{"070", "071", "072", "074", "075", "076", "077", "078"}

const (
	countryCode = "94"
	localLength = 10
)

var digitsOnly = regexp.MustCompile(`^\d+$`)

var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")

// PhoneValidator validates and normalises passenger phone numbers
type PhoneValidator struct {
	prefixes []string
}

// NewPhoneValidator creates a validator accepting prefixes, or DefaultPrefixes when none are given
func NewPhoneValidator(prefixes ...string) *PhoneValidator {
	if len(prefixes) == 0 {
		prefixes = DefaultPrefixes
	}
	return &PhoneValidator{prefixes: prefixes}
}

// Validate returns the number in local 0XXXXXXXXX form.
// Accepts 0771234567, 077 123 4567, 077-123-4567 and +94 77 123 4567.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	if !digitsOnly.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}
	if len(sanitized) != localLength {
		return "", ErrInvalidLength
	}
	if !v.IsValidPrefix(sanitized) {
		return "", ErrInvalidPrefix
	}
	return sanitized, nil
}

// Sanitize strips separators and rewrites the country code to a leading 0
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = separators.Replace(phone)
	if strings.HasPrefix(phone, countryCode) && len(phone) == localLength+1 {
		phone = "0" + phone[len(countryCode):]
	}
	return phone
}

// IsValidPrefix checks the first three digits against the accepted prefixes
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if len(phone) < 3 {
		return false
	}
	for _, p := range v.prefixes {
		if phone[:3] == p {
			return true
		}
	}
	return false
}

// Format renders a valid number as 07X XXX XXXX
func (v *PhoneValidator) Format(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", sanitized[0:3], sanitized[3:6], sanitized[6:10]), nil
}
