package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/leadloop/engage/internal/database"
	"github.com/leadloop/engage/internal/services/routing"
	"github.com/leadloop/engage/internal/validation"
)

// AssignmentHandler handles agent assignment requests
type AssignmentHandler struct {
	router *routing.Router
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(router *routing.Router) *AssignmentHandler {
	return &AssignmentHandler{router: router}
}

// RegisterRoutes registers assignment routes on the given router
// The router should already have the /assignments prefix
func (h *AssignmentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.AssignAgent).Methods("POST")
	r.HandleFunc("/{phone}", h.GetAssignment).Methods("GET")
	r.HandleFunc("/{phone}", h.RemoveAgent).Methods("DELETE")
	r.HandleFunc("/{phone}/history", h.GetHistory).Methods("GET")
}

// AssignAgentRequest routes a contact to an agent
type AssignAgentRequest struct {
	ContactID string `json:"contact_id,omitempty"`
	Phone     string `json:"phone" validate:"required"`
	AgentID   string `json:"agent_id" validate:"required"`
	AgentName string `json:"agent_name,omitempty"`
}

// AssignAgent creates or updates the contact's agent assignment
func (h *AssignmentHandler) AssignAgent(w http.ResponseWriter, r *http.Request) {
	var req AssignAgentRequest
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

	assignment, err := h.router.Assign(r.Context(), req.ContactID, req.Phone, req.AgentID, req.AgentName)
	if err != nil {
		if errors.Is(err, routing.ErrEmptyPhone) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "phone must contain at least one digit")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to assign agent")
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

// GetAssignment returns the active assignment for a phone
func (h *AssignmentHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	assignment, err := h.router.AgentForContact(r.Context(), phone)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No active assignment for contact")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve assignment")
		return
	}

	respondJSON(w, http.StatusOK, assignment)
}

// RemoveAgent soft-deactivates the contact's assignment
func (h *AssignmentHandler) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	if err := h.router.RemoveAgentFromContact(r.Context(), phone); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No active assignment for contact")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to remove agent")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"removed": true})
}

// GetHistory returns the contact's conversation transcript
func (h *AssignmentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	history, err := h.router.ConversationHistory(r.Context(), phone)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No active assignment for contact")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"messages": history,
		"count":    len(history),
	})
}
