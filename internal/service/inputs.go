package service

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"attire-api/internal/validate"
)

// SignupInput is the registration payload.
type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Gender          string `json:"gender"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (in *SignupInput) normalize() {
	in.Name = validate.Text(in.Name)
	in.Email = validate.NormalizeEmail(in.Email)
	in.Phone = validate.Text(in.Phone)
	in.Gender = validate.Text(in.Gender)
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validate.Name()...),
		validation.Field(&in.Email, validate.Email()...),
		validation.Field(&in.Phone, validate.Phone()...),
		validation.Field(&in.Gender, validate.Gender()...),
		validation.Field(&in.Password, validate.Password()...),
		validation.Field(&in.ConfirmPassword, validate.Confirm(in.Password)...),
	)
}

// ResetPasswordInput carries the new password for a reset.
type ResetPasswordInput struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Password, validate.Password()...),
		validation.Field(&in.ConfirmPassword, validate.Confirm(in.Password)...),
	)
}

// UpdatePasswordInput changes the password of a signed in user.
type UpdatePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (in UpdatePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, validation.Required.Error("Current password is required")),
		validation.Field(&in.Password, validate.Password()...),
		validation.Field(&in.ConfirmPassword, validate.Confirm(in.Password)...),
	)
}

// ProfileInput holds the whitelisted profile fields. Empty fields keep their stored value.
type ProfileInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Gender string `json:"gender"`
}

func (in *ProfileInput) normalize() {
	in.Name = validate.Text(in.Name)
	in.Email = validate.NormalizeEmail(in.Email)
	in.Phone = validate.Text(in.Phone)
	in.Gender = validate.Text(in.Gender)
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validate.Name()...),
		validation.Field(&in.Email, validate.Email()...),
		validation.Field(&in.Phone, validate.Phone()...),
		validation.Field(&in.Gender, validate.Gender()...),
	)
}
