package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-nudge/internal/engine"
	logpkg "github.com/benvon/smart-nudge/internal/logger"
	"github.com/benvon/smart-nudge/internal/models"
	"github.com/benvon/smart-nudge/internal/validation"
)

const (
	maxContentItems   = 1000
	maxRecordingItems = 1000
)

// MessageEngine is the part of the engine the message routes drive
type MessageEngine interface {
	GenerateOptimalMessage(ctx context.Context, user *models.RawUser, content []models.ContentItem, recordings []models.RecordingItem, opts engine.Options) *models.ContextualMessage
	RecordInteraction(ctx context.Context, messageID string, action models.InteractionAction, extra engine.Extra) error
}

// MessageHandler serves message generation and interaction recording
type MessageHandler struct {
	engine MessageEngine
	logger *zap.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(e MessageEngine, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{engine: e, logger: logger}
}

// GenerateOptions tune one generation call
type GenerateOptions struct {
	PreferAI      bool   `json:"prefer_ai"`
	MessageType   string `json:"message_type,omitempty" validate:"omitempty,message_type"`
	MaxCandidates int    `json:"max_candidates,omitempty" validate:"min=0,max=10"`
	// UseCache defaults to true
	UseCache *bool `json:"use_cache,omitempty"`
}

// GenerateRequest is the body of POST /api/v1/messages/generate
type GenerateRequest struct {
	User       models.RawUser               `json:"user"`
	Content    []models.ContentItem         `json:"content,omitempty"`
	Recordings []models.RecordingItem       `json:"recordings,omitempty"`
	Device     *models.DeviceInfo           `json:"device,omitempty"`
	Analytics  *models.PrecomputedAnalytics `json:"analytics,omitempty"`
	Experiment *models.Experiment           `json:"experiment,omitempty"`
	Options    GenerateOptions              `json:"options"`
}

func (req *GenerateRequest) engineOptions() engine.Options {
	useCache := true
	if req.Options.UseCache != nil {
		useCache = *req.Options.UseCache
	}
	return engine.Options{
		PreferAI:      req.Options.PreferAI,
		MessageType:   models.MessageType(req.Options.MessageType),
		MaxCandidates: req.Options.MaxCandidates,
		UseCache:      useCache,
		Device:        req.Device,
		Analytics:     req.Analytics,
		Experiment:    req.Experiment,
	}
}

// Generate handles POST /api/v1/messages/generate
func (h *MessageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	userID, err := resolveUserID(r, req.User.ID)
	if err != nil {
		respondUserError(w, r, err)
		return
	}
	req.User.ID = userID
	req.User.Name = validation.SanitizeText(req.User.Name)

	if err := validation.Validate.Struct(&req); err != nil {
		respondValidationError(w, r, err)
		return
	}
	if len(req.Content) > maxContentItems || len(req.Recordings) > maxRecordingItems {
		respondJSONError(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "too many content or recording items")
		return
	}

	msg := h.engine.GenerateOptimalMessage(r.Context(), &req.User, req.Content, req.Recordings, req.engineOptions())
	respondJSON(w, r, http.StatusOK, msg)
}

// InteractionRequest is the body of POST /api/v1/messages/{id}/interactions
type InteractionRequest struct {
	Action string `json:"action" validate:"required,interaction_action"`
	// UserID is only honored when the API runs without authentication
	UserID             string           `json:"user_id,omitempty" validate:"max=128"`
	EngagementDuration int64            `json:"engagement_duration_ms,omitempty" validate:"min=0"`
	Feedback           *models.Feedback `json:"feedback,omitempty"`
}

// RecordInteraction handles POST /api/v1/messages/{id}/interactions
func (h *MessageHandler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	messageID := strings.TrimSpace(mux.Vars(r)["id"])

	var req InteractionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondValidationError(w, r, err)
		return
	}

	userID, err := resolveUserID(r, req.UserID)
	if err != nil && !errors.Is(err, errMissingUser) {
		respondUserError(w, r, err)
		return
	}
	if req.Feedback != nil {
		req.Feedback.Comment = validation.SanitizeText(req.Feedback.Comment)
	}

	extra := engine.Extra{
		UserID:             userID,
		EngagementDuration: time.Duration(req.EngagementDuration) * time.Millisecond,
		Feedback:           req.Feedback,
	}
	err = h.engine.RecordInteraction(r.Context(), messageID, models.InteractionAction(req.Action), extra)
	switch {
	case err == nil:
		respondJSON(w, r, http.StatusAccepted, map[string]any{"message_id": messageID, "action": req.Action})
	case errors.Is(err, engine.ErrUnknownRecipient):
		respondJSONError(w, r, http.StatusNotFound, "Not Found", "unknown message; supply user_id")
	case errors.Is(err, engine.ErrMissingMessageID),
		errors.Is(err, engine.ErrInvalidAction),
		errors.Is(err, engine.ErrInvalidRating):
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("failed_to_record_interaction",
			zap.Error(err),
			zap.String("message_id", logpkg.SanitizeString(messageID, logpkg.MaxUserIDLength)),
		)
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to record interaction")
	}
}
