package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/queue"
	"github.com/leadloop/engage/internal/services/reports"
	"github.com/leadloop/engage/internal/validation"
)

// AnalyticsHandler handles contact analytics read requests and on-demand
// analysis triggers
type AnalyticsHandler struct {
	analyticsRepo  database.AnalyticsRepositoryInterface
	reportsService *reports.Service
	jobQueue       queue.JobQueue
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analyticsRepo database.AnalyticsRepositoryInterface, reportsService *reports.Service, jobQueue queue.JobQueue) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsRepo:  analyticsRepo,
		reportsService: reportsService,
		jobQueue:       jobQueue,
	}
}

// RegisterRoutes registers analytics routes on the given router
// The router should already have the /contact-analytics prefix
func (h *AnalyticsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/reports", h.ListReports).Methods("GET")
	r.HandleFunc("/summary", h.GetSummary).Methods("GET")
	r.HandleFunc("/analyze", h.TriggerAnalysis).Methods("POST")
}

// ListReportsResponse is the paginated analytics listing
type ListReportsResponse struct {
	Reports []*models.ContactAnalytics `json:"reports"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
	Total   int                        `json:"total"`
}

// TriggerAnalysisRequest names the contact to analyze on demand
type TriggerAnalysisRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// ListReports lists analytics records, optionally filtered by interest level
func (h *AnalyticsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parseLimitOffset(r)

	var level *models.InterestLevel
	if l := r.URL.Query().Get("interestLevel"); l != "" {
		if err := validation.ValidateInterestLevel(l); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		lEnum := models.InterestLevel(l)
		level = &lEnum
	}

	records, total, err := h.analyticsRepo.List(ctx, level, limit, offset)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve analytics reports")
		return
	}
	if records == nil {
		records = []*models.ContactAnalytics{}
	}

	respondJSON(w, http.StatusOK, ListReportsResponse{
		Reports: records,
		Limit:   limit,
		Offset:  offset,
		Total:   total,
	})
}

// GetSummary returns the analytics rollup
func (h *AnalyticsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reportsService.GetAnalyticsSummary(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// TriggerAnalysis enqueues an on-demand conversation analysis job
func (h *AnalyticsHandler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	var req TriggerAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	phone := models.NormalizePhone(req.Phone)
	if phone == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "phone must contain at least one digit")
		return
	}

	if h.jobQueue == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Analysis queue is not configured")
		return
	}

	job := queue.NewJob(queue.JobTypeConversationAnalysis, phone)
	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to enqueue analysis")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID.String(),
		"phone":  phone,
	})
}
