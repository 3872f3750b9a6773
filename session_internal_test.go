package localuser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckLoginBackoff(t *testing.T) {
	now := time.Now()

	t.Run("no attempts passes", func(t *testing.T) {
		account := &Account{}
		assert.NoError(t, checkLoginBackoff(account, 20, now))
	})

	t.Run("cap reached locks out", func(t *testing.T) {
		account := &Account{LoginAttempts: 20}
		assert.ErrorIs(t, checkLoginBackoff(account, 20, now), ErrTooManyLoginAttempts)
	})

	t.Run("cool-down inside window blocks", func(t *testing.T) {
		at := now.Add(-10 * time.Millisecond)
		account := &Account{LoginAttempts: 3, LoginAttemptAt: &at}
		assert.ErrorIs(t, checkLoginBackoff(account, 20, now), ErrTooManyLoginAttempts)
	})

	t.Run("cool-down elapsed passes", func(t *testing.T) {
		at := now.Add(-time.Minute)
		account := &Account{LoginAttempts: 3, LoginAttemptAt: &at}
		assert.NoError(t, checkLoginBackoff(account, 20, now))
	})

	t.Run("backoff is capped", func(t *testing.T) {
		at := now.Add(-maxLoginBackoff - time.Second)
		account := &Account{LoginAttempts: 19, LoginAttemptAt: &at}
		assert.NoError(t, checkLoginBackoff(account, 20, now))
	})
}

func TestStripBearerScheme(t *testing.T) {
	assert.Equal(t, "abc123", stripBearerScheme("Bearer abc123"))
	assert.Equal(t, "abc123", stripBearerScheme("bearer abc123"))
	assert.Equal(t, "abc123", stripBearerScheme("abc123"))
	assert.Equal(t, "Bearer", stripBearerScheme("Bearer"))
}
