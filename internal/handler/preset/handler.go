package preset

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hikkinomore/buddy-server/internal/model/preset"
	"github.com/hikkinomore/buddy-server/pkg/utils"
)

// Handler exposes the buddy preset catalog.
type Handler struct {
	presets preset.Store
}

// New creates the preset handler.
func New(presets preset.Store) *Handler {
	return &Handler{presets: presets}
}

// RegisterRoutes registers the preset routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/presets", h.handleListPresets)
}

func (h *Handler) handleListPresets(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.presets.List())
}
