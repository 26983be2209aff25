package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/hikkinomore/buddy-server/internal/logger"
	"github.com/hikkinomore/buddy-server/internal/store"

	chatservice "github.com/hikkinomore/buddy-server/internal/service/chat"
	"github.com/hikkinomore/buddy-server/pkg/utils"
)

// Handler exposes the conversation endpoints.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers the conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}/transcript", h.handleTranscript)
}

type chatRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Preset    string `json:"preset"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
}

// handleChat runs one exchange. With stream=true the reply is delivered as
// SSE delta frames followed by a final message frame; otherwise as one JSON
// body.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Stream || r.URL.Query().Get("stream") == "true" {
		h.streamChat(w, r, payload)
		return
	}

	reply, err := h.chatSvc.HandleMessage(r.Context(), payload.UserID, payload.SessionID, payload.Preset, payload.Message)
	if err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

type streamFrame struct {
	Event     string `json:"event,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, payload chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	// Deltas go out as plain data frames; lifecycle frames carry a typed
	// SSE event name so clients can listen for them directly.
	reply, err := h.chatSvc.HandleMessageStream(r.Context(), payload.UserID, payload.SessionID, payload.Preset, payload.Message, func(delta string) {
		utils.SendSSEChunk(w, flusher, streamFrame{Event: "delta", Content: delta})
	})
	if err != nil {
		logger.G(r.Context()).WithError(err).Error("streamed exchange failed")
		utils.SendSSEEvent(w, flusher, "error", streamFrame{Error: err.Error()})
		return
	}

	utils.SendSSEEvent(w, flusher, "message", streamFrame{SessionID: reply.SessionID, Content: reply.Content})
	utils.SendSSEEvent(w, flusher, "end", streamFrame{SessionID: reply.SessionID, Finished: true})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	sessions, err := h.chatSvc.Sessions(r.Context(), userID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	turns, err := h.chatSvc.Transcript(r.Context(), sessionID, limit)
	if err != nil {
		utils.RespondError(w, statusForError(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessionId": sessionID, "turns": turns})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage),
		errors.Is(err, chatservice.ErrEmptyUser),
		errors.Is(err, chatservice.ErrPresetNotFound):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
