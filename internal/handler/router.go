package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/hikkinomore/buddy-server/internal/handler/chat"
	presetHandler "github.com/hikkinomore/buddy-server/internal/handler/preset"
	skillHandler "github.com/hikkinomore/buddy-server/internal/handler/skill"
	middlewarePkg "github.com/hikkinomore/buddy-server/internal/middleware"
	presetModel "github.com/hikkinomore/buddy-server/internal/model/preset"
	chatService "github.com/hikkinomore/buddy-server/internal/service/chat"
	"github.com/hikkinomore/buddy-server/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(presets presetModel.Store, chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		presetHandler.New(presets).RegisterRoutes(api)
		chatHandler.New(chatSvc).RegisterRoutes(api)
		skillHandler.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
