package credential

import (
	"strings"
	"unicode"

	"github.com/asaskevich/govalidator"
)

const MinPasswordLength = 8

func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return false
	}
	return govalidator.IsEmail(email)
}

// IsStrongPassword requires MinPasswordLength characters with at least one
// lower case letter, upper case letter, digit and symbol. A space counts as a
// symbol.
func IsStrongPassword(password string) bool {
	if len([]rune(password)) < MinPasswordLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case r == ' ' || unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// NormalizeEmail lower-cases and trims an address before any lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
