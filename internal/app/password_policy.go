package app

import (
	"fmt"
	"unicode"

	"movierec/internal/validation"
)

// PasswordPolicy lists the requirements a new password must meet.
type PasswordPolicy struct {
	MinLength      int
	RequireDigit   bool
	RequireLower   bool
	RequireUpper   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy is six characters with one of each character class.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      6,
		RequireDigit:   true,
		RequireLower:   true,
		RequireUpper:   true,
		RequireSpecial: true,
	}
}

// Check returns one field error per unmet requirement.
func (p PasswordPolicy) Check(password string) validation.Errors {
	var errs validation.Errors

	if len([]rune(password)) < p.MinLength {
		errs.Add("password", fmt.Sprintf("Passwords must be at least %d characters.", p.MinLength))
	}

	var digit, lower, upper, special bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			special = true
		}
	}

	if p.RequireSpecial && !special {
		errs.Add("password", "Passwords must have at least one non alphanumeric character.")
	}
	if p.RequireDigit && !digit {
		errs.Add("password", "Passwords must have at least one digit ('0'-'9').")
	}
	if p.RequireLower && !lower {
		errs.Add("password", "Passwords must have at least one lowercase ('a'-'z').")
	}
	if p.RequireUpper && !upper {
		errs.Add("password", "Passwords must have at least one uppercase ('A'-'Z').")
	}
	return errs
}
