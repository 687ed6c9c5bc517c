package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuestion(t *testing.T) {
	assert.NoError(t, ValidateQuestion("What is the mean?"))
	assert.Error(t, ValidateQuestion(""))
	assert.Error(t, ValidateQuestion("   \n\t "))
	assert.Error(t, ValidateQuestion(strings.Repeat("x", maxQuestionBytes+1)))
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("sales.csv"))
	assert.NoError(t, ValidateFilename("report 2024.pdf"))
	assert.Error(t, ValidateFilename(""))
	assert.Error(t, ValidateFilename("../etc/passwd"))
	assert.Error(t, ValidateFilename("dir/file.csv"))
	assert.Error(t, ValidateFilename("win\\file.csv"))
	assert.Error(t, ValidateFilename("a;b.csv"))
	assert.Error(t, ValidateFilename("x`rm`.csv"))
	assert.Error(t, ValidateFilename(strings.Repeat("a", 256)))
}

func TestValidateTaskID(t *testing.T) {
	assert.NoError(t, ValidateTaskID("0d1c43c2-9c3e-4f6a-8b21-3f2a1d9e7c55"))
	assert.Error(t, ValidateTaskID(""))
	assert.Error(t, ValidateTaskID("not-a-uuid"))
	assert.Error(t, ValidateTaskID("0D1C43C2-9C3E-4F6A-8B21-3F2A1D9E7C55"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("hello\x00 world"))
	assert.Equal(t, "a\nb", SanitizeString("  a\nb  "))
	assert.Equal(t, "ab", SanitizeString("a\x01\x02b"))
}

func TestValidateLimit(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 20, ValidateLimit(-5))
	assert.Equal(t, 50, ValidateLimit(50))
	assert.Equal(t, 100, ValidateLimit(5000))
}
