package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashCode(t *testing.T) {
	code := "042917"
	hashed, err := HashCode(code)

	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)
	assert.NotEqual(t, code, hashed)
}

func TestCheckCodeHash(t *testing.T) {
	code := "042917"
	hashed, _ := HashCode(code)

	assert.True(t, CheckCodeHash(code, hashed))
	assert.False(t, CheckCodeHash("042918", hashed))
	assert.False(t, CheckCodeHash("42917", hashed))
}

func TestCheckCodeHash_InvalidHash(t *testing.T) {
	assert.False(t, CheckCodeHash("042917", "invalidhash"))
	assert.False(t, CheckCodeHash("042917", ""))
}
