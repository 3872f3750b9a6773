package localuser_test

import (
	"strings"
	"testing"

	localuser "github.com/goliatone/go-localuser"
	"github.com/stretchr/testify/assert"
)

func TestClassifyCredential(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		signedMode bool
		want       localuser.CredentialKind
	}{
		{"empty", "", true, localuser.CredentialNone},
		{"service secret", "svcAbCdEf123", false, localuser.CredentialServiceSecret},
		{"remember me", "remAbCdEf123", false, localuser.CredentialRememberMe},
		{"plain bearer", "AbCdEf123456", false, localuser.CredentialBearer},
		{"jwt in signed mode", "aaa.bbb.ccc", true, localuser.CredentialSigned},
		{"jwt shape without signed mode", "aaa.bbb.ccc", false, localuser.CredentialBearer},
		{"one dot is not a jwt", "aaa.bbb", true, localuser.CredentialBearer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, localuser.ClassifyCredential(tt.token, tt.signedMode))
		})
	}
}

func TestGenerateBearerTokenPrefixes(t *testing.T) {
	plain := localuser.GenerateBearerToken(false)
	assert.False(t, strings.HasPrefix(plain, localuser.RememberMePrefix))
	assert.False(t, strings.HasPrefix(plain, localuser.ServiceSecretPrefix))

	remembered := localuser.GenerateBearerToken(true)
	assert.True(t, strings.HasPrefix(remembered, localuser.RememberMePrefix))

	secret := localuser.GenerateServiceSecret()
	assert.True(t, strings.HasPrefix(secret, localuser.ServiceSecretPrefix))
}

func TestGenerateBearerTokenUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		token := localuser.GenerateBearerToken(false)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestGeneratedTokensRoundTripClassification(t *testing.T) {
	assert.Equal(t, localuser.CredentialBearer,
		localuser.ClassifyCredential(localuser.GenerateBearerToken(false), false))
	assert.Equal(t, localuser.CredentialRememberMe,
		localuser.ClassifyCredential(localuser.GenerateBearerToken(true), false))
	assert.Equal(t, localuser.CredentialServiceSecret,
		localuser.ClassifyCredential(localuser.GenerateServiceSecret(), false))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "******def", localuser.MaskSecret("abcabcdef"))
	assert.Equal(t, "***", localuser.MaskSecret("abc"))
	assert.Equal(t, "*", localuser.MaskSecret("a"))
	assert.Equal(t, "", localuser.MaskSecret(""))
}
