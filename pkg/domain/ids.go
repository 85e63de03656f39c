// Package domain holds typed identifiers shared across layers. Parsing happens at
// trust boundaries so the rest of the code never handles raw strings.
package domain

import (
	"github.com/google/uuid"

	dErrors "orgapi/pkg/domain-errors"
)

// ApplicantID identifies one applicant record (application or membership).
type ApplicantID uuid.UUID

// NewApplicantID returns a fresh random identifier.
func NewApplicantID() ApplicantID {
	return ApplicantID(uuid.New())
}

// ParseApplicantID validates s and returns the typed identifier.
// Empty, malformed and nil UUIDs are rejected with CodeInvalidInput.
func ParseApplicantID(s string) (ApplicantID, error) {
	parsed, err := parseUUID(s, "applicant ID")
	if err != nil {
		return ApplicantID{}, err
	}
	return ApplicantID(parsed), nil
}

func (id ApplicantID) String() string {
	return uuid.UUID(id).String()
}

func (id ApplicantID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id ApplicantID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ApplicantID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid applicant ID")
	}
	*id = ApplicantID(parsed)
	return nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return parsed, nil
}
