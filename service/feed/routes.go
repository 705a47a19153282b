package feed

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/monitoring"
)

type Handler struct {
	builder *Builder
	logger  *zap.Logger
}

func NewHandler(builder *Builder, logger *zap.Logger) *Handler {
	return &Handler{builder: builder, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router, requireLogin mux.MiddlewareFunc) {
	router.Handle("/feed", requireLogin(http.HandlerFunc(h.GetFeed))).Methods("GET")
}

// GetFeed returns posts from followed users, newest first.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	feed, err := h.builder.Build(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, h.logger, utils.Internal(err))
		return
	}
	monitoring.FeedPosts.Observe(float64(len(feed.Posts)))

	resp := utils.Envelope{
		"success": true,
		"count":   len(feed.Posts),
		"posts":   feed.Posts,
	}
	if feed.Message != "" {
		resp["message"] = feed.Message
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
