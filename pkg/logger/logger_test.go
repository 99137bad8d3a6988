package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKVs(t *testing.T) {
	out := Nop().sanitizeKVs([]interface{}{
		"step", "render",
		"verification_token", "abc123",
		"email", "Jane@Example.com",
		"dangling",
	})

	assert.Len(t, out, 7)
	assert.Equal(t, "render", out[1])
	assert.Equal(t, "[REDACTED]", out[3])
	hashed, ok := out[5].(string)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(hashed, "hash:"))
	assert.NotContains(t, hashed, "Example")
	assert.Equal(t, "dangling", out[6])
}

func TestRedactionDisabled(t *testing.T) {
	l, err := New("dev", "info", WithRedaction(false))
	require.NoError(t, err)

	out := l.sanitizeKVs([]interface{}{"verification_token", "abc123", "email", "jane@example.com"})
	assert.Equal(t, []interface{}{"verification_token", "abc123", "email", "jane@example.com"}, out)
}

func TestHashSaltChangesDigest(t *testing.T) {
	plain := Nop().sanitizeKVs([]interface{}{"email", "jane@example.com"})

	salted, err := New("dev", "info", WithHashSalt("pepper"))
	require.NoError(t, err)
	out := salted.sanitizeKVs([]interface{}{"email", "jane@example.com"})
	assert.NotEqual(t, plain[1], out[1])

	// settings survive With
	child := salted.With("step", "notify")
	assert.Equal(t, out, child.sanitizeKVs([]interface{}{"email", "jane@example.com"}))
}

func TestHashValueIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, hashValue("", "jane@example.com"), hashValue("", "JANE@example.com"))
	assert.Equal(t, "", hashValue("", ""))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("dev", "chatty")
	assert.Error(t, err)

	l, err := New("prod", "warn")
	assert.NoError(t, err)
	assert.NotNil(t, l)
}
