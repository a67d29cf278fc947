package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/queue"
	"github.com/leadloop/engage/internal/services/analytics"
	"github.com/leadloop/engage/internal/services/qualify"
	"github.com/leadloop/engage/internal/services/routing"
	"github.com/leadloop/engage/internal/validation"
	"go.uber.org/zap"
)

const (
	// MaxMessageContentLength is the maximum length for message content
	MaxMessageContentLength = 10000
	// DefaultAnalyzeAfterMessages triggers the LLM analysis every Nth message
	DefaultAnalyzeAfterMessages = 5
)

// MessageHandler handles message ingestion
type MessageHandler struct {
	router           *routing.Router
	qualifyService   *qualify.Service
	analyticsService *analytics.Service
	jobQueue         queue.JobQueue
	analyzeAfter     int
	logger           *zap.Logger
}

// NewMessageHandler creates a new message handler. jobQueue may be nil, in
// which case analysis jobs are simply not enqueued.
func NewMessageHandler(
	router *routing.Router,
	qualifyService *qualify.Service,
	analyticsService *analytics.Service,
	jobQueue queue.JobQueue,
	analyzeAfter int,
	logger *zap.Logger,
) *MessageHandler {
	if analyzeAfter <= 0 {
		analyzeAfter = DefaultAnalyzeAfterMessages
	}
	return &MessageHandler{
		router:           router,
		qualifyService:   qualifyService,
		analyticsService: analyticsService,
		jobQueue:         jobQueue,
		analyzeAfter:     analyzeAfter,
		logger:           logger,
	}
}

// RegisterRoutes registers message routes on the given router
// The router should already have the /messages prefix
func (h *MessageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.IngestMessage).Methods("POST")
}

// IngestMessageRequest represents one inbound or outbound message event
type IngestMessageRequest struct {
	ContactID    string `json:"contact_id,omitempty"`
	Phone        string `json:"phone" validate:"required"`
	Name         string `json:"name,omitempty"`
	Content      string `json:"content" validate:"required,min=1,max=10000"`
	Direction    string `json:"direction" validate:"required,message_direction"`
	Timestamp    string `json:"timestamp,omitempty"`
	Source       string `json:"source,omitempty" validate:"omitempty,contact_source"`
	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	AgentID      string `json:"agent_id,omitempty"`
	AgentName    string `json:"agent_name,omitempty"`
}

// IngestMessageResponse reports what the ingestion pipeline did with the event
type IngestMessageResponse struct {
	Qualification    *models.Qualification `json:"qualification"`
	HistoryRecorded  bool                  `json:"history_recorded"`
	AnalysisEnqueued bool                  `json:"analysis_enqueued"`
}

// IngestMessage runs the per-message pipeline: validate, assign the agent when
// one is named, append the transcript entry, update the keyword qualification,
// track the agent interaction, and enqueue an analysis job every Nth message.
func (h *MessageHandler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestMessageRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	// Empty after normalization means no digits at all; reject before storage
	if models.NormalizePhone(req.Phone) == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "phone must contain at least one digit")
		return
	}

	req.Content = validation.SanitizeText(req.Content)
	if req.Content == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "content cannot be empty")
		return
	}

	at := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "timestamp must be RFC3339")
			return
		}
		at = parsed
	}

	// Route to the named agent first so the history append has an assignment
	if req.AgentID != "" {
		if _, err := h.router.Assign(ctx, req.ContactID, req.Phone, req.AgentID, req.AgentName); err != nil {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to assign agent")
			return
		}
	}

	role := "assistant"
	if models.MessageDirection(req.Direction) == models.DirectionInbound {
		role = "user"
	}

	historyRecorded := false
	if err := h.router.AddMessageToHistory(ctx, req.Phone, role, req.Content); err == nil {
		historyRecorded = true
	}

	qualification, err := h.qualifyService.CreateOrUpdate(ctx, qualify.ContactUpdate{
		Phone:        req.Phone,
		Name:         req.Name,
		Message:      req.Content,
		Direction:    models.MessageDirection(req.Direction),
		Source:       models.Source(req.Source),
		ContactID:    req.ContactID,
		CampaignID:   req.CampaignID,
		CampaignName: req.CampaignName,
		AgentID:      req.AgentID,
		AgentName:    req.AgentName,
		Timestamp:    at,
	})
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update qualification")
		return
	}

	if err := h.analyticsService.TrackAgentInteraction(ctx, req.Phone, req.ContactID, req.Name,
		req.AgentID, req.AgentName, models.MessageDirection(req.Direction), at); err != nil {
		// Interaction tracking is best effort; the qualification already landed
		h.logger.Warn("agent_interaction_tracking_failed", zap.Error(err))
	}

	enqueued := false
	if h.jobQueue != nil && qualification.TotalMessages%h.analyzeAfter == 0 {
		job := queue.NewJob(queue.JobTypeConversationAnalysis, models.NormalizePhone(req.Phone))
		if err := h.jobQueue.Enqueue(ctx, job); err != nil {
			h.logger.Warn("analysis_job_enqueue_failed", zap.Error(err))
		} else {
			enqueued = true
		}
	}

	respondJSON(w, http.StatusOK, IngestMessageResponse{
		Qualification:    qualification,
		HistoryRecorded:  historyRecorded,
		AnalysisEnqueued: enqueued,
	})
}
