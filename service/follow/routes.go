package follow

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/monitoring"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router, requireLogin mux.MiddlewareFunc) {
	router.Handle("/follow", requireLogin(http.HandlerFunc(h.FollowUser))).Methods("POST")
	router.Handle("/follow", requireLogin(http.HandlerFunc(h.UnfollowUser))).Methods("DELETE")
	router.Handle("/following", requireLogin(http.HandlerFunc(h.GetFollowing))).Methods("GET")
}

type followRequest struct {
	UserEmail string `json:"userEmail"`
}

func (h *Handler) FollowUser(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	var req followRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	follow, err := h.service.Follow(r.Context(), user, req.UserEmail)
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}
	monitoring.FollowsChanged.WithLabelValues("follow").Inc()

	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{
		"success": true,
		"message": fmt.Sprintf("You are now following %s", follow.FollowingName),
		"follow":  follow,
	})
}

func (h *Handler) UnfollowUser(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	var req followRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	target, err := h.service.Unfollow(r.Context(), user, req.UserEmail)
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}
	monitoring.FollowsChanged.WithLabelValues("unfollow").Inc()

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": fmt.Sprintf("You have unfollowed %s", target.Name),
	})
}

func (h *Handler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	following, err := h.service.Following(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":   true,
		"count":     len(following),
		"following": following,
	})
}
