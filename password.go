package localuser

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 25_000
	pbkdf2KeyLength  = 64
	saltLength       = 32
)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD")

// ErrMismatchedHashAndPassword is the generic comparison failure
var ErrMismatchedHashAndPassword = goerrors.New("password does not match stored hash", goerrors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH").
	WithCode(goerrors.CodeUnauthorized)

// PBKDF2Hasher derives salted one-way hashes. It is pure CPU work and never
// performs I/O, so comparisons are safe on the hot authentication path.
type PBKDF2Hasher struct {
	Iterations int
	KeyLength  int
}

var _ PasswordHasher = (*PBKDF2Hasher)(nil)

// NewPasswordHasher returns the default hasher.
func NewPasswordHasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{
		Iterations: pbkdf2Iterations,
		KeyLength:  pbkdf2KeyLength,
	}
}

// HashPassword generates a fresh random salt and derives the hash for it.
// Both values are hex encoded for storage.
func (h *PBKDF2Hasher) HashPassword(password string) (string, string, error) {
	if password == "" {
		return "", "", ErrNoEmptyString
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password salt")
	}

	saltHex := hex.EncodeToString(salt)
	return h.derive(password, salt), saltHex, nil
}

// ComparePasswordAndHash re-derives the hash with the stored salt and checks
// it in constant time.
func (h *PBKDF2Hasher) ComparePasswordAndHash(password, salt, hash string) error {
	if password == "" || salt == "" || hash == "" {
		return ErrMismatchedHashAndPassword
	}

	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return ErrMismatchedHashAndPassword
	}

	derived := h.derive(password, rawSalt)
	if subtle.ConstantTimeCompare([]byte(derived), []byte(hash)) != 1 {
		return ErrMismatchedHashAndPassword
	}

	return nil
}

func (h *PBKDF2Hasher) derive(password string, salt []byte) string {
	iterations := h.Iterations
	if iterations <= 0 {
		iterations = pbkdf2Iterations
	}

	keyLength := h.KeyLength
	if keyLength <= 0 {
		keyLength = pbkdf2KeyLength
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha512.New)
	return hex.EncodeToString(key)
}
