package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/models"
	"github.com/leadloop/engage/internal/services/qualify"
	"github.com/leadloop/engage/internal/services/reports"
	"github.com/leadloop/engage/internal/validation"
)

const (
	// DefaultPageSize is the default page size for list endpoints
	DefaultPageSize = 100
	// MaxPageSize is the maximum page size for list endpoints
	MaxPageSize = 500
)

// QualificationHandler handles qualification read and override requests
type QualificationHandler struct {
	qualRepo       database.QualificationRepositoryInterface
	qualifyService *qualify.Service
	reportsService *reports.Service
}

// NewQualificationHandler creates a new qualification handler
func NewQualificationHandler(qualRepo database.QualificationRepositoryInterface, qualifyService *qualify.Service, reportsService *reports.Service) *QualificationHandler {
	return &QualificationHandler{
		qualRepo:       qualRepo,
		qualifyService: qualifyService,
		reportsService: reportsService,
	}
}

// RegisterRoutes registers qualification routes on the given router
// The router should already have the /qualifications prefix
func (h *QualificationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListQualifications).Methods("GET")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/report", h.GetReport).Methods("GET")
	r.HandleFunc("/{id}/category", h.UpdateCategory).Methods("PUT")
	r.HandleFunc("/{id}/notes", h.UpdateNotes).Methods("PUT")
}

// ListQualificationsResponse is the paginated qualification listing
type ListQualificationsResponse struct {
	Qualifications []*models.Qualification `json:"qualifications"`
	Limit          int                     `json:"limit"`
	Offset         int                     `json:"offset"`
	Total          int                     `json:"total"`
}

// UpdateCategoryRequest is the manual category override request
type UpdateCategoryRequest struct {
	Category string `json:"category" validate:"required,qualification_category"`
	Notes    string `json:"notes,omitempty"`
}

// UpdateNotesRequest replaces the operator notes
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// ListQualifications lists qualification records, optionally filtered by source
func (h *QualificationHandler) ListQualifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parseLimitOffset(r)

	var source *models.Source
	if s := r.URL.Query().Get("source"); s != "" {
		if err := validation.ValidateSource(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		sEnum := models.Source(s)
		source = &sEnum
	}

	qualifications, total, err := h.qualRepo.List(ctx, source, limit, offset)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve qualifications")
		return
	}
	if qualifications == nil {
		qualifications = []*models.Qualification{}
	}

	respondJSON(w, http.StatusOK, ListQualificationsResponse{
		Qualifications: qualifications,
		Limit:          limit,
		Offset:         offset,
		Total:          total,
	})
}

// GetStats returns the overall qualification rollup
func (h *QualificationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reportsService.GetQualificationStats(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetReport returns the grouped qualification report
func (h *QualificationHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportsService.GetQualificationReport(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute report")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// UpdateCategory applies a manual category override
func (h *QualificationHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseQualificationID(w, r)
	if !ok {
		return
	}

	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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

	q, err := h.qualifyService.UpdateCategory(r.Context(), id, models.QualificationCategory(req.Category), req.Notes)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Qualification not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update category")
		return
	}

	respondJSON(w, http.StatusOK, q)
}

// UpdateNotes replaces the operator notes on a qualification
func (h *QualificationHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := parseQualificationID(w, r)
	if !ok {
		return
	}

	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	q, err := h.qualifyService.UpdateNotes(r.Context(), id, req.Notes)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Qualification not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update notes")
		return
	}

	respondJSON(w, http.StatusOK, q)
}

func parseQualificationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := uuid.Parse(idStr)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid qualification ID")
		return uuid.Nil, false
	}
	return id, true
}

func parseLimitOffset(r *http.Request) (limit, offset int) {
	limit = DefaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			if parsed > MaxPageSize {
				limit = MaxPageSize
			} else {
				limit = parsed
			}
		}
	}
	offset = 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
