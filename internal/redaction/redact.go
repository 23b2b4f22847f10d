// Package redaction masks personal data before it reaches logs.
package redaction

import (
	"regexp"
	"strings"
)

// PIIRedactor provides PII redaction for identity data and backend messages
type PIIRedactor struct {
	emailRegex *regexp.Regexp
	phoneRegex *regexp.Regexp
	tokenRegex *regexp.Regexp
}

// NewPIIRedactor creates a new PII redactor
func NewPIIRedactor() *PIIRedactor {
	return &PIIRedactor{
		emailRegex: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		// Matches various phone formats including international
		phoneRegex: regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}`),
		// Bearer tokens and compact JWTs
		tokenRegex: regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/=-]+|eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]*`),
	}
}

// RedactString removes emails, phone numbers and bearer credentials.
func (r *PIIRedactor) RedactString(content string) string {
	// Tokens first so their digits are not mistaken for phones
	content = r.tokenRegex.ReplaceAllString(content, "[TOKEN_REDACTED]")
	content = r.emailRegex.ReplaceAllString(content, "[EMAIL_REDACTED]")
	content = r.phoneRegex.ReplaceAllString(content, "[PHONE_REDACTED]")
	return content
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "j***@example.com". Values that are not emails are fully redacted.
func (r *PIIRedactor) MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || !r.emailRegex.MatchString(email) {
		return "[EMAIL_REDACTED]"
	}
	return email[:1] + "***" + email[at:]
}

// DefaultRedactor is the default PII redactor instance
var DefaultRedactor = NewPIIRedactor()

// RedactString is a convenience function that uses the default redactor
func RedactString(content string) string {
	return DefaultRedactor.RedactString(content)
}

// MaskEmail is a convenience function that uses the default redactor
func MaskEmail(email string) string {
	return DefaultRedactor.MaskEmail(email)
}
