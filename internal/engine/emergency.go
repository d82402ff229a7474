package engine

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/benvon/smart-nudge/internal/models"
)

type emergencyText struct {
	title string
	body  string
}

var emergencyLanguages = []language.Tag{
	language.English,
	language.French,
	language.Spanish,
	language.German,
	language.Italian,
	language.Portuguese,
}

var emergencyMatcher = language.NewMatcher(emergencyLanguages)

var emergencyTexts = map[string]emergencyText{
	"en": {"Welcome back", "Ready to create something today?"},
	"fr": {"Bon retour", "Prêt à créer quelque chose aujourd'hui ?"},
	"es": {"Bienvenido de nuevo", "¿Listo para crear algo hoy?"},
	"de": {"Willkommen zurück", "Bereit, heute etwas zu erschaffen?"},
	"it": {"Bentornato", "Pronto a creare qualcosa oggi?"},
	"pt": {"Bem-vindo de volta", "Pronto para criar algo hoje?"},
}

// emergencyLanguage picks the closest supported language for tag, English by default
func emergencyLanguage(tag string) string {
	if tag == "" {
		return "en"
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "en"
	}
	_, idx, conf := emergencyMatcher.Match(t)
	if conf == language.No {
		return "en"
	}
	base, _ := emergencyLanguages[idx].Base()
	return base.String()
}

// emergencyMessage is returned when the pipeline cannot produce a message
func emergencyMessage(userID, lang string, now time.Time) *models.ContextualMessage {
	code := emergencyLanguage(lang)
	text := emergencyTexts[code]
	shown := now
	return &models.ContextualMessage{
		ID:       uuid.NewString(),
		Title:    text.title,
		Body:     text.body,
		Icon:     "✨",
		Type:     models.MessageTypeMotivation,
		Priority: models.PriorityLow,
		Category: models.CategoryFor(models.MessageTypeMotivation),
		Tags:     []string{"emergency", "lang_" + code},
		Metadata: models.MessageMetadata{
			CreatedAt:      now,
			LastShown:      &shown,
			ShowCount:      1,
			TargetAudience: []string{userID},
			Source:         models.SourceFallback,
		},
		SelectedTone: models.ToneCasual,
	}
}
