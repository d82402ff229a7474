package contextbuilder

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"

	"github.com/benvon/smart-nudge/internal/models"
)

const (
	// DefaultLanguage is used when no valid language is supplied
	DefaultLanguage = "en"

	trendWindow      = 15 * 24 * time.Hour
	topicLimit       = 5
	keywordsPerItem  = 10
	minKeywordLength = 5
	teamThreshold    = 3
)

// Holiday is a fixed-date holiday
type Holiday struct {
	Month time.Month `yaml:"month" json:"month"`
	Day   int        `yaml:"day" json:"day"`
}

// DefaultHolidays returns New Year's Day, Labour Day, July 14 and Christmas
func DefaultHolidays() []Holiday {
	return []Holiday{
		{Month: time.January, Day: 1},
		{Month: time.May, Day: 1},
		{Month: time.July, Day: 14},
		{Month: time.December, Day: 25},
	}
}

func isHoliday(calendar []Holiday, t time.Time) bool {
	return slices.ContainsFunc(calendar, func(h Holiday) bool {
		return h.Month == t.Month() && h.Day == t.Day()
	})
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// contentQuality scores one item out of 100
func contentQuality(item models.ContentItem) int {
	score := 50
	words := wordCount(item.Content)
	if words > 100 {
		score += 10
	}
	if words > 300 {
		score += 10
	}
	if strings.Contains(item.Content, "\n\n") {
		score += 10
	}
	for _, p := range []string{"!", "?", ":", ";", "-"} {
		if strings.Contains(item.Content, p) {
			score += 2
		}
	}
	if item.IsFavorite {
		score += 10
	}
	return min(100, score)
}

// averageQuality is the rounded mean item quality, 0 without content
func averageQuality(items []models.ContentItem) int {
	if len(items) == 0 {
		return 0
	}
	total := 0
	for _, it := range items {
		total += contentQuality(it)
	}
	return (total + len(items)/2) / len(items)
}

func engagementScore(content, recordings, streak, uniqueFeatures int) int {
	score := 0
	if content > 0 {
		score += 20
	}
	if recordings > 0 {
		score += 20
	}
	if streak > 3 {
		score += 10
	}
	if streak > 7 {
		score += 10
	}
	if streak > 30 {
		score += 20
	}
	score += min(20, 5*uniqueFeatures)
	return min(100, score)
}

// productivityTrend compares items created in the last 15 days with the 15 days before
func productivityTrend(items []models.ContentItem, now time.Time) models.ProductivityTrend {
	recentStart := now.Add(-trendWindow)
	olderStart := now.Add(-2 * trendWindow)
	recent, older := 0, 0
	for _, it := range items {
		switch {
		case it.CreatedAt.After(recentStart):
			recent++
		case it.CreatedAt.After(olderStart):
			older++
		}
	}
	switch {
	case float64(recent) > float64(older)*1.2:
		return models.TrendIncreasing
	case float64(recent) < float64(older)*0.8:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func skillLevel(total, quality int) models.SkillLevel {
	switch {
	case total < 5:
		return models.SkillBeginner
	case total < 20 && quality < 60:
		return models.SkillIntermediate
	case total < 50 && quality < 80:
		return models.SkillAdvanced
	default:
		return models.SkillExpert
	}
}

var stopWords = map[string]bool{
	// english
	"about": true, "after": true, "again": true, "being": true, "could": true,
	"every": true, "other": true, "should": true, "their": true, "there": true,
	"these": true, "thing": true, "think": true, "those": true, "which": true,
	"while": true, "would": true, "where": true, "because": true, "before": true,
	// french
	"avec": true, "comme": true, "dans": true, "leurs": true, "notre": true,
	"votre": true, "cette": true, "aussi": true, "alors": true, "encore": true,
}

func keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := make([]string, 0, keywordsPerItem)
	for _, w := range words {
		if len([]rune(w)) < minKeywordLength || stopWords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == keywordsPerItem {
			break
		}
	}
	return out
}

// topics returns the most frequent keywords across items, ties in alphabetical order
func topics(items []models.ContentItem) []string {
	counts := map[string]int{}
	for _, it := range items {
		for _, k := range keywords(it.Content) {
			counts[k]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(keys) > topicLimit {
		keys = keys[:topicLimit]
	}
	return keys
}

func milestones(contentCount, words int) []models.MilestoneProgress {
	var out []models.MilestoneProgress
	if contentCount == 0 {
		out = append(out, models.MilestoneProgress{ID: "first_content", Name: "Create your first piece", Current: 0, Target: 1})
	}
	out = append(out,
		models.MilestoneProgress{
			ID: "ten_items", Name: "Create 10 pieces", Current: contentCount, Target: 10,
			Progress: min(1, float64(contentCount)/10),
		},
		models.MilestoneProgress{
			ID: "thousand_words", Name: "Write 1000 words", Current: words, Target: 1000,
			Progress: min(1, float64(words)/1000),
		},
	)
	return out
}

// loginFrequency classifies the visits of the last 30 days
func loginFrequency(history []time.Time, now time.Time) models.LoginFrequency {
	cutoff := now.AddDate(0, 0, -30)
	n := 0
	for _, t := range history {
		if !t.Before(cutoff) {
			n++
		}
	}
	switch {
	case n >= 25:
		return models.LoginDaily
	case n >= 10:
		return models.LoginWeekly
	case n >= 3:
		return models.LoginOccasional
	default:
		return models.LoginRare
	}
}

var toneOrder = []models.Tone{models.ToneCasual, models.ToneMotivational, models.ToneEducational, models.ToneFormal}

// preferredTone is the tone with the most positive interactions, casual by default
func preferredTone(history []models.MessageInteraction) models.Tone {
	counts := map[models.Tone]int{}
	for _, i := range history {
		if i.Tone != "" && i.IsPositive() {
			counts[i.Tone]++
		}
	}
	best, bestCount := models.ToneCasual, 0
	for _, t := range toneOrder {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	return best
}

// NormalizeLanguage reduces a BCP 47 tag to its base language, "en" when invalid
func NormalizeLanguage(tag string) string {
	if tag == "" {
		return DefaultLanguage
	}
	t, err := language.Parse(tag)
	if err != nil {
		return DefaultLanguage
	}
	base, conf := t.Base()
	if conf == language.No {
		return DefaultLanguage
	}
	return base.String()
}

func collaborationLevel(usage map[string]int) models.CollaborationLevel {
	if usage["collaboration"] >= teamThreshold {
		return models.CollaborationTeam
	}
	return models.CollaborationSolo
}

func deviceType(d *models.DeviceInfo) models.DeviceType {
	switch {
	case d == nil:
		return models.DeviceMobile
	case d.IsTablet:
		return models.DeviceTablet
	case d.IsDesktop:
		return models.DeviceDesktop
	default:
		return models.DeviceMobile
	}
}

func planningSummary(events []models.PlanningEvent, goals []models.Goal, now time.Time) *models.PlanningSummary {
	s := &models.PlanningSummary{}
	horizon := now.Add(7 * 24 * time.Hour)
	var next *models.PlanningEvent
	for i := range events {
		e := events[i]
		switch {
		case e.Completed:
		case e.StartsAt.Before(now):
			s.OverdueEvents++
		case !e.StartsAt.After(horizon):
			s.UpcomingEvents++
			if next == nil || e.StartsAt.Before(next.StartsAt) {
				next = &events[i]
			}
		}
	}
	if next != nil {
		n := *next
		s.NextEvent = &n
	}
	for _, g := range goals {
		if !g.Completed {
			s.ActiveGoals++
		}
	}
	return s
}

func displayName(u *models.RawUser) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok {
		return local
	}
	return ""
}
