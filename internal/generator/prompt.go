package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/benvon/smart-nudge/internal/models"
)

const systemPrompt = "You write short, friendly in-app messages for a writing and recording app. " +
	"Respond with a JSON object {\"title\": string, \"message\": string, \"icon\": string} only. " +
	"Keep the message under 40 words and the title under 8 words."

// typeGoals describes what each message type should achieve
var typeGoals = map[models.MessageType]string{
	models.MessageTypeWelcome:          "welcome the user and invite them to create their first piece of content",
	models.MessageTypeMotivation:       "encourage the user to keep up their current momentum",
	models.MessageTypeTip:              "share one practical tip that fits the user's skill level",
	models.MessageTypeAchievement:      "congratulate the user on a recent achievement",
	models.MessageTypeReminder:         "gently remind the user about pending work or upcoming plans",
	models.MessageTypeCelebration:      "celebrate the user's streak",
	models.MessageTypeEducational:      "explain one basic feature in simple words",
	models.MessageTypeSeasonal:         "acknowledge the current season or holiday",
	models.MessageTypeMilestone:        "tell the user they are close to a milestone",
	models.MessageTypeFeatureDiscovery: "suggest a feature the user has not tried yet",
	models.MessageTypeReEngagement:     "welcome the user back after time away",
	models.MessageTypeFeedbackRequest:  "ask the user for quick feedback",
}

// buildPrompt describes the user and the wanted message type
func buildPrompt(uc *models.UserContext, typ models.MessageType) string {
	var b strings.Builder
	goal, ok := typeGoals[typ]
	if !ok {
		goal = "write a helpful message"
	}
	fmt.Fprintf(&b, "Write a %s message. Goal: %s.\n\n", typ, goal)

	b.WriteString("User context:")
	if uc.UserName != "" {
		fmt.Fprintf(&b, "\n- Name: %s", uc.UserName)
	}
	fmt.Fprintf(&b, "\n- Skill level: %s", uc.SkillLevel)
	fmt.Fprintf(&b, "\n- Content created: %d (%d words)", uc.ContentCount, uc.TotalWordsWritten)
	fmt.Fprintf(&b, "\n- Consecutive active days: %d", uc.ConsecutiveDays)
	fmt.Fprintf(&b, "\n- Time of day: %s, %s", uc.TimeOfDay, uc.DayOfWeek)
	fmt.Fprintf(&b, "\n- Productivity trend: %s", uc.ProductivityTrend)
	if uc.IsFirstLogin {
		b.WriteString("\n- This is the user's first visit")
	} else if uc.DaysSinceLastLogin > 0 {
		fmt.Fprintf(&b, "\n- Days since last visit: %d", uc.DaysSinceLastLogin)
	}
	if len(uc.MostUsedTopics) > 0 {
		fmt.Fprintf(&b, "\n- Favorite topics: %s", strings.Join(uc.MostUsedTopics, ", "))
	}
	if uc.Planning != nil {
		fmt.Fprintf(&b, "\n- Upcoming events: %d, overdue: %d, active goals: %d",
			uc.Planning.UpcomingEvents, uc.Planning.OverdueEvents, uc.Planning.ActiveGoals)
	}

	fmt.Fprintf(&b, "\n\nWrite in a %s tone, in the language with code %q.", uc.PreferredTone, uc.PreferredLanguage)
	return b.String()
}

// buildRestylePrompt asks for a rewrite of a template message that keeps its intent
func buildRestylePrompt(uc *models.UserContext, msg *models.ContextualMessage) string {
	return fmt.Sprintf(`Rewrite the following %s message so it feels personal to a %s user, in a %s tone and the language with code %q.
Keep its intent and keep every {placeholder} unchanged.

Title: %s
Message: %s`, msg.Type, uc.SkillLevel, uc.PreferredTone, uc.PreferredLanguage, msg.Title, msg.Body)
}

type completion struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// parseCompletion reads a {title,message,icon} object, tolerating surrounding
// text and code fences, and falls back to treating the reply as plain text
func parseCompletion(raw string) (completion, bool) {
	raw = strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if raw == "" {
		return completion{}, false
	}

	var c completion
	candidate := raw
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start != -1 && end > start {
		candidate = raw[start : end+1]
	}
	if err := json.Unmarshal([]byte(candidate), &c); err == nil {
		c.Title = strings.TrimSpace(c.Title)
		c.Message = strings.TrimSpace(c.Message)
		if c.Message != "" {
			return c, true
		}
		return completion{}, false
	}

	lines := strings.Split(raw, "\n")
	var kept []string
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > 1 {
		return completion{
			Title:   strings.Trim(kept[0], "#*: "),
			Message: strings.Join(kept[1:], " "),
		}, true
	}
	return completion{Message: kept[0]}, true
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+)\S`)

// firstSentence returns the first sentence of text and whether more followed it
func firstSentence(text string) (string, bool) {
	loc := sentenceEnd.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	return text[:loc[2]], true
}
