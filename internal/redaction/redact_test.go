package redaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactString_Emails(t *testing.T) {
	redacted := RedactString("link failed for john.doe@example.com or support@company.org")

	assert.NotContains(t, redacted, "john.doe@example.com")
	assert.NotContains(t, redacted, "support@company.org")
	assert.Contains(t, redacted, "[EMAIL_REDACTED]")
}

func TestRedactString_Phones(t *testing.T) {
	redacted := RedactString("Call me at 555-123-4567")

	assert.NotContains(t, redacted, "555-123-4567")
	assert.Contains(t, redacted, "[PHONE_REDACTED]")
}

func TestRedactString_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bearer header", input: "Authorization: Bearer abc.def-123"},
		{name: "bare jwt", input: "token eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjMifQ.sig_part"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redacted := RedactString(tt.input)
			assert.Contains(t, redacted, "[TOKEN_REDACTED]")
			assert.NotContains(t, redacted, "eyJ")
			assert.NotContains(t, redacted, "abc.def-123")
		})
	}
}

func TestRedactString_NoPII(t *testing.T) {
	content := "ranking job still running"
	assert.Equal(t, content, RedactString(content))
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "regular email", email: "jane@example.com", expected: "j***@example.com"},
		{name: "surrounding spaces", email: "  bob@corp.io ", expected: "b***@corp.io"},
		{name: "empty", email: "", expected: ""},
		{name: "not an email", email: "jane", expected: "[EMAIL_REDACTED]"},
		{name: "missing local part", email: "@example.com", expected: "[EMAIL_REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskEmail(tt.email))
		})
	}
}
