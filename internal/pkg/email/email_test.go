package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1337@example.test", Normalize("  1337@EXAMPLE.test "))
	assert.Equal(t, "", Normalize("   "))
}

func TestIsValid(t *testing.T) {
	cases := map[string]bool{
		"jdoe@example.test":   true,
		"jane.smith@acme.com": true,
		"not-an-email":        false,
		"":                    false,
		"missing@":            false,
		"@missing-local.test": false,
		"two@@example.test":   false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, IsValid(addr), addr)
	}
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.test", Domain("boss@example.test"))
	assert.Equal(t, "", Domain("nobody"))
}
