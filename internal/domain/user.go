package domain

import (
	"regexp"
	"strings"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// MinPasswordLength is enforced locally before any sign-in or sign-up call.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Credentials is the sign-in input. PhoneNumber is only sent for customers.
type Credentials struct {
	Email       string
	Password    string
	PhoneNumber string
}

// Normalize trims fields and lower-cases the email.
func (c Credentials) Normalize() Credentials {
	return Credentials{
		Email:       strings.ToLower(strings.TrimSpace(c.Email)),
		Password:    c.Password,
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
	}
}

// Validate checks the input without touching the network.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.Password) == "" {
		return apperrors.NewInvalidInput("Please enter both email and password.")
	}
	if !emailPattern.MatchString(strings.TrimSpace(c.Email)) {
		return apperrors.NewInvalidInput("Please enter a valid email address.")
	}
	if len(c.Password) < MinPasswordLength {
		return apperrors.NewInvalidInput("Password must be at least 6 characters long.")
	}
	return nil
}

// VendorSignUp carries the business profile collected at vendor registration.
type VendorSignUp struct {
	BusinessName     string
	ContactPerson    string
	Email            string
	PhoneNumber      string
	Password         string
	ConfirmPassword  string
	BusinessCategory string
	BusinessAddress  string
}

// Normalize trims fields and lower-cases the email. Passwords are left untouched.
func (v VendorSignUp) Normalize() VendorSignUp {
	out := v
	out.BusinessName = strings.TrimSpace(v.BusinessName)
	out.ContactPerson = strings.TrimSpace(v.ContactPerson)
	out.Email = strings.ToLower(strings.TrimSpace(v.Email))
	out.PhoneNumber = strings.TrimSpace(v.PhoneNumber)
	out.BusinessCategory = strings.TrimSpace(v.BusinessCategory)
	out.BusinessAddress = strings.TrimSpace(v.BusinessAddress)
	return out
}

// Validate reports the first failing field.
func (v VendorSignUp) Validate() error {
	switch {
	case strings.TrimSpace(v.BusinessName) == "":
		return apperrors.NewInvalidInput("Business name is required.")
	case strings.TrimSpace(v.ContactPerson) == "":
		return apperrors.NewInvalidInput("Contact person name is required.")
	case strings.TrimSpace(v.Email) == "":
		return apperrors.NewInvalidInput("Email is required.")
	case !emailPattern.MatchString(strings.TrimSpace(v.Email)):
		return apperrors.NewInvalidInput("Please enter a valid email address.")
	case strings.TrimSpace(v.PhoneNumber) == "":
		return apperrors.NewInvalidInput("Phone number is required.")
	case strings.TrimSpace(v.Password) == "":
		return apperrors.NewInvalidInput("Password is required.")
	case len(v.Password) < MinPasswordLength:
		return apperrors.NewInvalidInput("Password must be at least 6 characters long.")
	case v.Password != v.ConfirmPassword:
		return apperrors.NewInvalidInput("Passwords do not match.")
	case strings.TrimSpace(v.BusinessCategory) == "":
		return apperrors.NewInvalidInput("Business category is required.")
	case strings.TrimSpace(v.BusinessAddress) == "":
		return apperrors.NewInvalidInput("Business address is required.")
	}
	return nil
}

// CustomerSignUp carries the personal profile collected at customer registration.
type CustomerSignUp struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

// Normalize trims fields and lower-cases the email.
func (c CustomerSignUp) Normalize() CustomerSignUp {
	return CustomerSignUp{
		FirstName:   strings.TrimSpace(c.FirstName),
		LastName:    strings.TrimSpace(c.LastName),
		Email:       strings.ToLower(strings.TrimSpace(c.Email)),
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
		Password:    c.Password,
	}
}

// Validate requires every contact field.
func (c CustomerSignUp) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" ||
		strings.TrimSpace(c.LastName) == "" ||
		strings.TrimSpace(c.Email) == "" ||
		strings.TrimSpace(c.PhoneNumber) == "" ||
		strings.TrimSpace(c.Password) == "" {
		return apperrors.NewInvalidInput("Please fill all required fields.")
	}
	if len(c.Password) < MinPasswordLength {
		return apperrors.NewInvalidInput("Password must be at least 6 characters long.")
	}
	if !emailPattern.MatchString(strings.TrimSpace(c.Email)) {
		return apperrors.NewInvalidInput("Please enter a valid email address.")
	}
	return nil
}
