package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	kv := []any{"applicant_id", "a-1", 42, "skipped", "count", 3, "actor_id", "board-1"}

	v, ok := String(kv, "actor_id")
	assert.True(t, ok)
	assert.Equal(t, "board-1", v)

	_, ok = String(kv, "count")
	assert.False(t, ok, "non-string value")

	_, ok = String(kv, "missing")
	assert.False(t, ok)

	_, ok = String([]any{"dangling"}, "dangling")
	assert.False(t, ok)
}

func TestSetDefault(t *testing.T) {
	kv := []any{"actor_id", "explicit"}

	assert.Equal(t, kv, SetDefault(kv, "actor_id", "from-context"))
	assert.Equal(t, kv, SetDefault(kv, "request_id", ""))
	assert.Equal(t, []any{"actor_id", "explicit", "request_id", "req-1"}, SetDefault(kv, "request_id", "req-1"))
}
