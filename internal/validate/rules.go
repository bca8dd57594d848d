// Package validate holds the input rules for account payloads. The rules run
// before anything reaches the credential store.
package validate

import (
	"errors"
	"html"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/nyaruka/phonenumbers"
)

const (
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes
	MaxPasswordLength = 72

	phoneRegion = "IN"
)

var phonePattern = regexp.MustCompile(`^\+91\d{10}$|^\d{10}$`)

// Name rules for display names.
func Name() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Name is required"),
		validation.Length(1, 100),
	}
}

// Email rules; callers normalize with NormalizeEmail first.
func Email() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Email is required"),
		is.EmailFormat.Error("Please provide a valid email"),
	}
}

// Phone accepts 10 digits, optionally prefixed with +91, that also parse as an Indian number.
func Phone() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Phone number is required"),
		validation.Match(phonePattern).Error("Please enter a valid phone number (either +91 followed by 10 digits or 10 digits without a country code)"),
		validation.By(dialablePhone),
	}
}

// Gender restricts to the known enumeration.
func Gender() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Gender is required"),
		validation.In("male", "female", "other").Error("Gender must be male, female or other"),
	}
}

// Password enforces the length policy.
func Password() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Password is required"),
		validation.RuneLength(MinPasswordLength, 0).Error("Password must be at least 6 characters long"),
		validation.Length(0, MaxPasswordLength).Error("Password must be at most 72 bytes long"),
	}
}

// Confirm requires the value to equal password.
func Confirm(password string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Confirm password is required"),
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if s != password {
				return errors.New("Passwords do not match")
			}
			return nil
		}),
	}
}

func dialablePhone(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return errors.New("Phone number is not a valid number")
	}
	return nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Text trims free text and escapes markup so stored values are safe to echo back.
func Text(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// Message flattens a validation failure into one client-facing sentence.
func Message(err error) string {
	var errs validation.Errors
	if errors.As(err, &errs) {
		parts := make([]string, 0, len(errs))
		for _, key := range sortedKeys(errs) {
			parts = append(parts, errs[key].Error())
		}
		return strings.Join(parts, ". ")
	}
	return err.Error()
}

func sortedKeys(errs validation.Errors) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
