package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MaxPasswordLen = 128
)

// Policy holds the password requirements from the configuration surface
type Policy struct {
	MinLength      int
	RequireSpecial bool
}

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Generic message to users - specifics would aid enumeration
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"trustno1":     true,
	"passw0rd":     true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword verifies a password against its bcrypt hash in constant
// time. An error means mismatch.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the configured password policy
func ValidatePassword(password string, policy Policy) error {
	errs := make([]string, 0)

	if len(password) < policy.MinLength {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", policy.MinLength))
	}
	if len(password) > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	if policy.RequireSpecial {
		hasSpecial := false
		for _, r := range password {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				hasSpecial = true
				break
			}
		}
		if !hasSpecial {
			errs = append(errs, "must contain at least one special character")
		}
	}

	if commonPasswords[strings.ToLower(password)] {
		errs = append(errs, "is too common, please choose a more unique password")
	}

	if len(errs) > 0 {
		return &PasswordValidationError{Errors: errs}
	}

	return nil
}
