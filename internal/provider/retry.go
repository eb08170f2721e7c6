package provider

import "strings"

// Retryable reports whether an error from an LLM or embedding call should
// trigger a retry. Vendor SDKs wrap HTTP failures inconsistently, so this
// classifies by message content rather than by error type.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Rate limit errors - always retry
	if containsAny(msg, "rate limit", "quota exceeded", "429", "resource exhausted") {
		return true
	}

	// Transient server errors - retry
	if containsAny(msg, "500", "502", "503", "504", "unavailable", "overloaded") {
		return true
	}

	// Network errors - retry
	if containsAny(msg, "connection reset", "timeout", "temporary", "EOF") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
