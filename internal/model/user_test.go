package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("Ada@Example.com"))
	assert.Equal(t, "ada@example.com", NormalizeEmail("  ada@example.com "))
	assert.Equal(t, "ada@example.com", NormalizeEmail("ada@example.com"))
}

func TestPasswordChangedAfter(t *testing.T) {
	issued := time.Now().UTC()

	u := User{}
	assert.False(t, u.PasswordChangedAfter(issued), "never changed")

	u.PasswordChangedAt = issued.Add(-time.Hour)
	assert.False(t, u.PasswordChangedAfter(issued), "changed before issue")

	u.PasswordChangedAt = issued.Add(time.Hour)
	assert.True(t, u.PasswordChangedAfter(issued), "changed after issue")
}
