package localuser

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// CredentialKind is the tagged variant an inbound credential is classified
// into. Classification happens once per request and dispatches to exactly one
// resolution strategy.
type CredentialKind string

const (
	CredentialNone          CredentialKind = "none"
	CredentialServiceSecret CredentialKind = "service-secret"
	CredentialRememberMe    CredentialKind = "remember-me"
	CredentialBearer        CredentialKind = "bearer"
	CredentialSigned        CredentialKind = "signed"
)

const (
	// RememberMePrefix tags bearer tokens with the extended expiry window.
	RememberMePrefix = "rem"
	// ServiceSecretPrefix tags long-lived machine secrets.
	ServiceSecretPrefix = "svc"

	maskChar      = "*"
	maskShowChars = 3
)

// ClassifyCredential maps a raw credential onto its variant. Signed tokens
// are only recognized when the subsystem runs in signed-token mode.
func ClassifyCredential(token string, signedMode bool) CredentialKind {
	if token == "" {
		return CredentialNone
	}

	switch {
	case strings.HasPrefix(token, ServiceSecretPrefix):
		return CredentialServiceSecret
	case strings.HasPrefix(token, RememberMePrefix):
		return CredentialRememberMe
	case signedMode && strings.Count(token, ".") == 2:
		return CredentialSigned
	default:
		return CredentialBearer
	}
}

// GenerateBearerToken mints a high-entropy opaque session token. Remember-me
// tokens get the rem prefix so they can be classified without a store lookup.
func GenerateBearerToken(remember bool) string {
	token := randomToken()
	if remember {
		return RememberMePrefix + token
	}
	return token
}

// GenerateServiceSecret mints a svc prefixed machine secret.
func GenerateServiceSecret() string {
	return ServiceSecretPrefix + randomToken()
}

// GenerateVerifyValue mints the nonce stored in the verification slot.
func GenerateVerifyValue() string {
	buf := make([]byte, 32)
	mustRead(buf)
	return hex.EncodeToString(buf)
}

// GenerateNonceToken mints the single-use socket handshake token.
func GenerateNonceToken() string {
	buf := make([]byte, 24)
	mustRead(buf)
	return hex.EncodeToString(buf)
}

// MaskSecret hides all but the last three characters of a secret. Short
// values are masked entirely.
func MaskSecret(secret string) string {
	if len(secret) <= maskShowChars {
		return strings.Repeat(maskChar, len(secret))
	}
	return strings.Repeat(maskChar, len(secret)-maskShowChars) + secret[len(secret)-maskShowChars:]
}

// randomToken produces url-safe entropy that never collides with the rem or
// svc classification prefixes.
func randomToken() string {
	for {
		buf := make([]byte, 32)
		mustRead(buf)
		token := base64.RawURLEncoding.EncodeToString(buf)
		if !strings.HasPrefix(token, RememberMePrefix) && !strings.HasPrefix(token, ServiceSecretPrefix) {
			return token
		}
	}
}

func mustRead(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; nothing sane to do.
		panic(err)
	}
}
