package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgapi/internal/platform/config"
)

func TestOpenRequiresURL(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{})
	require.Error(t, err)
	assert.Nil(t, db)
}
