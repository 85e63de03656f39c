package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"orgapi/pkg/platform/sentinel"
)

func TestMapWriteErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pq.Error{Code: "23505"}, sentinel.ErrConflict},
		{"check violation", &pq.Error{Code: "23514", Constraint: "membership_applicants_lifecycle"}, sentinel.ErrInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapWriteErr("update applicant", tt.err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		cause := &pq.Error{Code: "23502"}
		err := mapWriteErr("update applicant", cause)
		assert.ErrorIs(t, err, cause)
		assert.False(t, errors.Is(err, sentinel.ErrConflict))
		assert.False(t, errors.Is(err, sentinel.ErrInvariantViolation))
	})
}
