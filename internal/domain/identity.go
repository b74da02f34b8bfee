package domain

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Identity is captured once when a session starts and never changes afterwards.
type Identity struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,e164"`
	Country string `json:"country" validate:"required,max=80"`
}

// Normalize trims whitespace and lowercases the email.
func (i Identity) Normalize() Identity {
	return Identity{
		Name:    strings.TrimSpace(i.Name),
		Email:   strings.ToLower(strings.TrimSpace(i.Email)),
		Phone:   strings.TrimSpace(i.Phone),
		Country: strings.TrimSpace(i.Country),
	}
}

// Validate checks the identity fields, wrapping failures in ErrInvalidIdentity.
func (i Identity) Validate() error {
	if err := validate.Struct(i); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidIdentity, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return nil
}
