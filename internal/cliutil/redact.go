package cliutil

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive values in user-facing output.
const RedactedPlaceholder = "[redacted]"

var secretKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|access[_-]?key|private[_-]?key|credential)`)

var secretKeyExact = map[string]struct{}{
	"AWS_ACCESS_KEY_ID":     {},
	"AWS_SECRET_ACCESS_KEY": {},
	"AWS_SESSION_TOKEN":     {},
	"AZURE_CLIENT_SECRET":   {},
	"DATABASE_URL":          {},
}

// IsSecretKey reports whether an environment variable name looks like
// it carries a credential.
func IsSecretKey(key string) bool {
	if _, ok := secretKeyExact[strings.ToUpper(key)]; ok {
		return true
	}
	return secretKeyPattern.MatchString(key)
}

// RedactValue masks the value of a sensitive variable.
func RedactValue(key, value string) string {
	if value == "" || !IsSecretKey(key) {
		return value
	}
	return RedactedPlaceholder
}
