package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length limits, in runes, for values written to logs
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength bounds prompts and completions logged in debug mode
	MaxDebugContentLength = 10000
)

// SanitizeString drops control characters and invalid UTF-8 from s and
// truncates it to maxLength runes. maxLength <= 0 uses MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLength*utf8.UTFMax))
	n := 0
	for _, r := range s {
		if !unicode.IsPrint(r) && r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if n == maxLength {
			b.WriteString("...")
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeError renders err for a log field
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizePath bounds a request path
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeUserID bounds a caller-supplied user ID
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeDebugContent bounds prompt and completion text
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
