package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveDataPatterns match credentials embedded in free-form strings
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((appid|api[_-]?key|token|secret|passw(or)?d)[\s:=]+)([^&;,\s]{3,})`),
}

// sensitiveKeywords are field keys whose values are never written to logs
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "apikey", "api_key", "appid", "authorization", "dsn",
}

// RedactSensitiveData replaces credentials in input with "[REDACTED]".
// Use it for URLs and error messages that may carry query-string keys.
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "${1}"+redacted)
	}
	return input
}

func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}
