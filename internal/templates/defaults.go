package templates

import "github.com/benvon/smart-nudge/internal/models"

func cond(typ models.ConditionType, property string, op models.Operator, value any, weight float64) models.MessageCondition {
	return models.MessageCondition{Type: typ, Property: property, Operator: op, Value: value, Weight: weight}
}

// DefaultTemplates returns the built-in template set
func DefaultTemplates() []models.MessageTemplate {
	return []models.MessageTemplate{
		{
			ID:       "welcome_first_time",
			Type:     models.MessageTypeWelcome,
			Category: models.CategoryOnboarding,
			Variants: []models.TemplateText{
				{Title: "Welcome aboard!", Message: "Hi {name}! Ready to turn your ideas into something great? We're here to help at every step.", Icon: "rocket"},
				{Title: "Let's get started", Message: "Hello {name}! Discover what you can build here. Start with your first piece of content.", Icon: "sparkles"},
				{Title: "Your creative journey begins", Message: "Welcome {name}! Creating polished content has never been simpler. Let's explore together.", Icon: "pencil"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionUserState, "isFirstLogin", models.OpEquals, true, 1.0),
			},
			Tags:   []string{"onboarding", "new_user", "welcome"},
			Weight: 1.0,
		},
		{
			ID:       "welcome_returning",
			Type:     models.MessageTypeReEngagement,
			Category: models.CategoryEngagement,
			Variants: []models.TemplateText{
				{Title: "Good to see you again", Message: "Welcome back {name}! Your {contentCount} items are waiting. Ready to create something new?", Icon: "wave"},
				{Title: "We missed you", Message: "Glad you're back {name}! Pick up where you left off with a fresh idea.", Icon: "target"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionUserState, "daysSinceLastLogin", models.OpGreaterThan, 7, 0.8),
			},
			Tags:   []string{"returning", "re_engagement"},
			Weight: 0.9,
		},
		{
			ID:       "motivation_productivity",
			Type:     models.MessageTypeMotivation,
			Category: models.CategoryEngagement,
			Variants: []models.TemplateText{
				{Title: "You're on fire!", Message: "Amazing {name}! {consecutiveDays} days in a row and {words} words written. Your consistency is paying off!", Icon: "flame"},
				{Title: "What consistency", Message: "Well done {name}! Your dedication is inspiring. Keep up the momentum!", Icon: "rocket"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionBehavior, "consecutiveDays", models.OpGreaterThan, 3, 0.7),
			},
			Tags:   []string{"motivation", "streak", "productive"},
			Weight: 0.8,
		},
		{
			ID:       "educational_beginner",
			Type:     models.MessageTypeEducational,
			Category: models.CategoryEducation,
			Variants: []models.TemplateText{
				{Title: "Tip of the day", Message: "Did you know the assistant can adapt the tone of your writing? Try a few styles to find your own voice.", Icon: "bulb"},
				{Title: "Getting to know the app", Message: "The teleprompter adjusts its scrolling speed automatically. Perfect for natural presentations.", Icon: "camera"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionUserState, "skillLevel", models.OpEquals, string(models.SkillBeginner), 0.8),
			},
			Tags:   []string{"education", "tips", "beginner"},
			Weight: 0.7,
		},
		{
			ID:       "achievement_milestone",
			Type:     models.MessageTypeAchievement,
			Category: models.CategoryAchievement,
			Variants: []models.TemplateText{
				{Title: "Milestone reached!", Message: "Congratulations {name}! You've written {words} words. That's a small book!", Icon: "trophy"},
				{Title: "New record", Message: "Incredible {name}! {contentCount} items created. Your library keeps growing.", Icon: "chart"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionAchievement, "achievementCount", models.OpGreaterThan, 0, 0.9),
			},
			Tags:   []string{"achievement", "milestone", "celebration", "engaged"},
			Weight: 0.95,
		},
		{
			ID:       "milestone_near",
			Type:     models.MessageTypeMilestone,
			Category: models.CategoryAchievement,
			Variants: []models.TemplateText{
				{Title: "Almost there", Message: "You're close to your next milestone {name}. One more push and it's yours!", Icon: "flag"},
				{Title: "So close", Message: "Just a little more work unlocks your next milestone. Keep going!", Icon: "mountain"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionAchievement, "nearMilestone", models.OpEquals, true, 1.0),
			},
			Tags:   []string{"milestone", "progress"},
			Weight: 0.85,
		},
		{
			ID:       "seasonal_holiday",
			Type:     models.MessageTypeSeasonal,
			Category: models.CategorySeasonal,
			Variants: []models.TemplateText{
				{Title: "Happy holidays!", Message: "Happy holidays {name}! It's the perfect moment to write something special for the people you love.", Icon: "gift"},
				{Title: "A creative season", Message: "Enjoy the season and let it inspire your next piece. Inspiration is everywhere!", Icon: "blossom"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionTemporal, "isHoliday", models.OpEquals, true, 0.9),
			},
			Tags:   []string{"seasonal", "holiday", "special"},
			Weight: 0.85,
		},
		{
			ID:       "tip_advanced",
			Type:     models.MessageTypeTip,
			Category: models.CategoryEducation,
			Variants: []models.TemplateText{
				{Title: "Pro tip", Message: "Use keyboard shortcuts to edit faster. Ctrl+B for bold, Ctrl+I for italics!", Icon: "bolt"},
				{Title: "Tune your workflow", Message: "Create reusable templates for your favorite formats. Guaranteed time savings!", Icon: "wrench"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionUserState, "skillLevel", models.OpEquals, string(models.SkillAdvanced), 0.7),
			},
			Tags:   []string{"tips", "advanced", "productive"},
			Weight: 0.6,
		},
		{
			ID:       "tip_expert",
			Type:     models.MessageTypeTip,
			Category: models.CategoryEducation,
			Variants: []models.TemplateText{
				{Title: "Power user move", Message: "Tag your best work as a favorite and reuse its structure next time. Your {contentCount} items are a toolkit.", Icon: "bolt"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionUserState, "skillLevel", models.OpEquals, string(models.SkillExpert), 0.7),
			},
			Tags:   []string{"tips", "advanced", "power_user"},
			Weight: 0.55,
		},
		{
			ID:       "reminder_save",
			Type:     models.MessageTypeReminder,
			Category: models.CategoryProductivity,
			Variants: []models.TemplateText{
				{Title: "Don't forget", Message: "Add your most important items to favorites for quick access.", Icon: "disk"},
				{Title: "Quick reminder", Message: "Drafts are saved automatically, but remember to export your finished work!", Icon: "outbox"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionBehavior, "contentCount", models.OpGreaterThan, 5, 0.5),
			},
			Tags:   []string{"reminder", "tips", "organization"},
			Weight: 0.5,
		},
		{
			ID:       "reminder_overdue",
			Type:     models.MessageTypeReminder,
			Category: models.CategoryProductivity,
			Variants: []models.TemplateText{
				{Title: "A few things slipped", Message: "You have {overdueEvents} overdue items {name}. Take five minutes to catch up.", Icon: "clock"},
				{Title: "Catch up time", Message: "{overdueEvents} planned items are past due. A quick review will get you back on track.", Icon: "calendar"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionContext, "planning.overdueEvents", models.OpGreaterThan, 0, 1.0),
			},
			Tags:   []string{"reminder", "planning"},
			Weight: 0.75,
		},
		{
			ID:       "reminder_upcoming",
			Type:     models.MessageTypeReminder,
			Category: models.CategoryProductivity,
			Variants: []models.TemplateText{
				{Title: "Coming up", Message: "{upcomingEvents} events this week and {activeGoals} goals in progress. Plan your next session now.", Icon: "calendar"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionContext, "planning.upcomingEvents", models.OpGreaterThan, 0, 0.6),
				cond(models.ConditionContext, "planning.activeGoals", models.OpGreaterThan, 0, 0.4),
			},
			Tags:   []string{"reminder", "planning"},
			Weight: 0.6,
		},
		{
			ID:       "feature_discovery_collaboration",
			Type:     models.MessageTypeFeatureDiscovery,
			Category: models.CategoryFeature,
			Variants: []models.TemplateText{
				{Title: "New feature", Message: "Have you tried collaboration mode? Work on the same piece with others in real time!", Icon: "people"},
				{Title: "Worth a look", Message: "Video export is now available. Turn your work into a polished video in one click.", Icon: "film"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionBehavior, "featureUsage.collaboration", models.OpEquals, 0, 0.6),
			},
			Tags:   []string{"features", "discovery", "collaboration"},
			Weight: 0.7,
		},
		{
			ID:       "celebration_streak",
			Type:     models.MessageTypeCelebration,
			Category: models.CategoryAchievement,
			Variants: []models.TemplateText{
				{Title: "Time to celebrate", Message: "{consecutiveDays} days straight {name}! That's a habit worth celebrating.", Icon: "party"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionBehavior, "consecutiveDays", models.OpGreaterThan, 6, 0.8),
				cond(models.ConditionBehavior, "totalDaysActive", models.OpGreaterThan, 14, 0.2),
			},
			Tags:   []string{"celebration", "streak", "engaged", "regular"},
			Weight: 0.7,
		},
		{
			ID:       "feedback_request_engaged",
			Type:     models.MessageTypeFeedbackRequest,
			Category: models.CategoryFeedback,
			Variants: []models.TemplateText{
				{Title: "How are we doing?", Message: "You've been with us for a while {name}. Tell us what would make the app better for you.", Icon: "speech"},
			},
			Conditions: []models.MessageCondition{
				cond(models.ConditionBehavior, "totalDaysActive", models.OpGreaterThan, 14, 0.6),
				cond(models.ConditionBehavior, "interactionCount", models.OpGreaterThan, 5, 0.4),
			},
			Tags:   []string{"feedback", "experienced"},
			Weight: 0.4,
		},
	}
}
