package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "orgapi/pkg/domain-errors"
	"orgapi/pkg/email"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ApplyRequest is the public intake payload.
type ApplyRequest struct {
	FirstName        string `json:"first_name" validate:"required,max=100"`
	LastName         string `json:"last_name" validate:"required,max=100"`
	DateOfBirth      string `json:"date_of_birth,omitempty" validate:"max=10"`
	PersonalNr       string `json:"personal_nr" validate:"required,max=32"`
	Address          string `json:"address,omitempty" validate:"max=200"`
	PostCode         string `json:"post_code,omitempty" validate:"max=16"`
	City             string `json:"city,omitempty" validate:"max=100"`
	Phone            string `json:"phone,omitempty" validate:"max=32"`
	Email            string `json:"email" validate:"required,email,max=254"`
	Occupation       string `json:"occupation,omitempty" validate:"max=100"`
	PaymentReference string `json:"payment_reference" validate:"required,max=100"`
	PaymentAmount    int    `json:"payment_amount"`
}

func (r *ApplyRequest) Normalize() {
	if r == nil {
		return
	}
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.PersonalNr = strings.TrimSpace(r.PersonalNr)
	r.Address = strings.TrimSpace(r.Address)
	r.PostCode = strings.TrimSpace(r.PostCode)
	r.City = strings.TrimSpace(r.City)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = email.Normalize(r.Email)
	r.Occupation = strings.TrimSpace(r.Occupation)
	r.PaymentReference = strings.TrimSpace(r.PaymentReference)
}

// Validate checks size, presence and syntax. The fee is checked by the service,
// which owns the configured amount.
func (r *ApplyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validationError(validate.Struct(r))
}

// PersonalData converts the request into the stored shape. An unparseable
// date of birth is dropped rather than rejected.
func (r *ApplyRequest) PersonalData() PersonalData {
	return PersonalData{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: ParseDate(r.DateOfBirth),
		PersonalNr:  r.PersonalNr,
		Address:     r.Address,
		PostCode:    r.PostCode,
		City:        r.City,
		Phone:       r.Phone,
		Email:       r.Email,
		Occupation:  r.Occupation,
	}
}

// MemberRequest is the admin payload for creating or replacing a member.
type MemberRequest struct {
	FirstName        string `json:"first_name" validate:"required,max=100"`
	LastName         string `json:"last_name" validate:"required,max=100"`
	DateOfBirth      string `json:"date_of_birth,omitempty" validate:"max=10"`
	PersonalNr       string `json:"personal_nr" validate:"required,max=32"`
	Address          string `json:"address,omitempty" validate:"max=200"`
	PostCode         string `json:"post_code,omitempty" validate:"max=16"`
	City             string `json:"city,omitempty" validate:"max=100"`
	Phone            string `json:"phone,omitempty" validate:"max=32"`
	Email            string `json:"email" validate:"required,email,max=254"`
	Occupation       string `json:"occupation,omitempty" validate:"max=100"`
	PaymentReference string `json:"payment_reference,omitempty" validate:"max=100"`
	PaymentAmount    int    `json:"payment_amount,omitempty" validate:"gte=0"`
}

func (r *MemberRequest) Normalize() {
	if r == nil {
		return
	}
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.PersonalNr = strings.TrimSpace(r.PersonalNr)
	r.Address = strings.TrimSpace(r.Address)
	r.PostCode = strings.TrimSpace(r.PostCode)
	r.City = strings.TrimSpace(r.City)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = email.Normalize(r.Email)
	r.Occupation = strings.TrimSpace(r.Occupation)
	r.PaymentReference = strings.TrimSpace(r.PaymentReference)
}

func (r *MemberRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validationError(validate.Struct(r))
}

func (r *MemberRequest) PersonalData() PersonalData {
	return PersonalData{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: ParseDate(r.DateOfBirth),
		PersonalNr:  r.PersonalNr,
		Address:     r.Address,
		PostCode:    r.PostCode,
		City:        r.City,
		Phone:       r.Phone,
		Email:       r.Email,
		Occupation:  r.Occupation,
	}
}

// MaxRetentionDays bounds how long a rejected application may be retained.
const MaxRetentionDays = 36500

// RejectRequest carries the optional retention period and reason for a rejection.
// A missing or non-positive DaysToKeep falls back to the configured default.
type RejectRequest struct {
	DaysToKeep *int   `json:"days_to_keep,omitempty" validate:"omitempty,lte=36500"`
	Reason     string `json:"reason,omitempty" validate:"max=2000"`
}

func (r *RejectRequest) Normalize() {
	if r == nil {
		return
	}
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return nil
	}
	return validationError(validate.Struct(r))
}

// validationError turns the first validator failure into a coded error with a
// field-level message.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		msg = fmt.Sprintf("%s must be %s characters or less", field, fe.Param())
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return dErrors.New(dErrors.CodeValidation, msg)
}
