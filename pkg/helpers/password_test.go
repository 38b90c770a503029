package helpers_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinicore/authorization/pkg/helpers"
)

func TestHashPassword(t *testing.T) {
	hash, err := helpers.HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "correct horse battery staple", hash)
	assert.True(t, strings.HasPrefix(hash, "$2"), "expected a bcrypt hash, got %q", hash)
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	h1, err := helpers.HashPassword("samepassword")
	assert.NoError(t, err)
	h2, err := helpers.HashPassword("samepassword")
	assert.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	assert.True(t, helpers.CompareHashAndPassword(h1, "samepassword"))
	assert.True(t, helpers.CompareHashAndPassword(h2, "samepassword"))
}

func TestCompareHashAndPassword(t *testing.T) {
	hash, err := helpers.HashPassword("s3cretpass")
	assert.NoError(t, err)

	tests := []struct {
		name  string
		hash  string
		plain string
		want  bool
	}{
		{name: "correct password", hash: hash, plain: "s3cretpass", want: true},
		{name: "wrong password", hash: hash, plain: "S3cretpass", want: false},
		{name: "empty password", hash: hash, plain: "", want: false},
		{name: "not a bcrypt hash", hash: "plaintext", plain: "plaintext", want: false},
		{name: "empty hash", hash: "", plain: "s3cretpass", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, helpers.CompareHashAndPassword(tt.hash, tt.plain))
		})
	}
}
