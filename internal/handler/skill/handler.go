package skill

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/hikkinomore/buddy-server/internal/service/chat"
	"github.com/hikkinomore/buddy-server/pkg/utils"
)

// Handler exposes the skill progress endpoints.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the skill handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers the skill progress routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/skills/summary", h.handleSummary)
	r.Get("/skills/history", h.handleHistory)
	r.Post("/skills/evaluate", h.handleEvaluate)
}

// handleSummary reports per-skill mastery status over the full taxonomy.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	summary, err := h.chatSvc.SkillSummary(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, summary)
}

// handleHistory lists stored judgments, optionally scoped to one session.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	records, err := h.chatSvc.SkillHistory(r.Context(), userID, r.URL.Query().Get("sessionId"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"evaluations": records})
}

// handleEvaluate triggers an on-demand evaluation of a session's recent
// history. Evaluator failures still produce a 200 with a null judgment; only
// storage failures are surfaced as errors.
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID        string `json:"userId"`
		SessionID     string `json:"sessionId"`
		RecentRecords int    `json:"recentRecords"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" || payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId and sessionId are required")
		return
	}

	judgment, stored, err := h.chatSvc.EvaluateRecent(r.Context(), payload.UserID, payload.SessionID, payload.RecentRecords)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"judgment": judgment,
		"stored":   stored,
	})
}
