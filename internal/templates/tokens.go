package templates

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/benvon/smart-nudge/internal/models"
)

var (
	tokenPattern      = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)
	spaceRun          = regexp.MustCompile(`\s+`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([!?.,;:])`)
	danglingSeparator = regexp.MustCompile(`[,;:]\s*([!?.])`)
	leadingPunct      = regexp.MustCompile(`^[\s,;:!?.]+`)
)

// Tokens extracts the personalization tokens available for uc
func Tokens(uc *models.UserContext) map[string]string {
	tokens := map[string]string{
		"name":            uc.UserName,
		"contentCount":    strconv.Itoa(uc.ContentCount),
		"words":           strconv.Itoa(uc.TotalWordsWritten),
		"consecutiveDays": strconv.Itoa(uc.ConsecutiveDays),
		"level":           string(uc.SkillLevel),
		"overdueEvents":   "0",
		"upcomingEvents":  "0",
		"activeGoals":     "0",
	}
	if uc.Planning != nil {
		tokens["overdueEvents"] = strconv.Itoa(uc.Planning.OverdueEvents)
		tokens["upcomingEvents"] = strconv.Itoa(uc.Planning.UpcomingEvents)
		tokens["activeGoals"] = strconv.Itoa(uc.Planning.ActiveGoals)
	}
	return tokens
}

// Substitute replaces {token} placeholders with their values. Tokens with no
// value are removed and the surrounding spacing and punctuation repaired.
func Substitute(text string, tokens map[string]string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	out := tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		return tokens[tok[1:len(tok)-1]]
	})
	out = spaceRun.ReplaceAllString(out, " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = danglingSeparator.ReplaceAllString(out, "$1")
	out = leadingPunct.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// LengthOf classifies text by word count
func LengthOf(text string) models.Length {
	n := len(strings.Fields(text))
	switch {
	case n < 20:
		return models.LengthShort
	case n < 50:
		return models.LengthMedium
	default:
		return models.LengthLong
	}
}
