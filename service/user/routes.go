package user

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/monitoring"
	"github.com/terrascenik/server/session"
)

type Handler struct {
	service  *Service
	sessions *session.Manager
	logger   *zap.Logger
}

func NewHandler(service *Service, sessions *session.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, sessions: sessions, logger: logger}
}

// RegisterRoutes sets up all user-related routes
func (h *Handler) RegisterRoutes(router *mux.Router, requireLogin mux.MiddlewareFunc) {
	router.HandleFunc("/users", h.HandleRegister).Methods("POST")
	router.HandleFunc("/users", h.SearchUsers).Methods("GET")
	router.HandleFunc("/login", h.handleStatus).Methods("GET")
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/login", h.handleLogout).Methods("DELETE")
	router.Handle("/users/profile", requireLogin(http.HandlerFunc(h.UpdateProfile))).Methods("PUT")
	router.Handle("/users/profile-picture", requireLogin(http.HandlerFunc(h.UpdateProfilePicture))).Methods("PUT")
	router.Handle("/users/{email}/profile", requireLogin(http.HandlerFunc(h.GetProfile))).Methods("GET")
}

// HandleRegister creates an account and logs it in.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		if utils.KindOf(err) == utils.KindConflict {
			h.logger.Info("registration with duplicate email", zap.String("email", in.Email))
		}
		utils.WriteError(w, h.logger, err)
		return
	}
	monitoring.Registrations.Inc()

	if err := h.sessions.Login(w, r, user.Identity()); err != nil {
		utils.WriteError(w, h.logger, utils.Internal(err))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{
		"success": true,
		"message": "User registered successfully",
		"user": utils.Envelope{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"bio":   user.Bio,
		},
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &loginRequest); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	user, err := h.service.Login(r.Context(), loginRequest.Name, loginRequest.Password)
	if err != nil {
		if utils.KindOf(err) == utils.KindUnauthorized {
			monitoring.Logins.WithLabelValues("rejected").Inc()
		}
		utils.WriteError(w, h.logger, err)
		return
	}

	if err := h.sessions.Login(w, r, user.Identity()); err != nil {
		utils.WriteError(w, h.logger, utils.Internal(err))
		return
	}
	monitoring.Logins.WithLabelValues("success").Inc()

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Login successful",
		"user":    user.Public(),
	})
}

// handleStatus reports whether the caller is logged in. It prefers fresh user
// data and falls back to what the session holds.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok, _ := h.sessions.User(r)
	if !ok {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{
			"success":  true,
			"loggedIn": false,
			"message":  "No user logged in",
		})
		return
	}

	current := models.PublicUser{ID: identity.ID, Name: identity.Name, Email: identity.Email}
	if user, err := h.service.Get(r.Context(), identity.ID); err == nil {
		current = user.Public()
	} else {
		h.logger.Warn("login status fell back to session data", zap.String("userId", identity.ID), zap.Error(err))
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":  true,
		"loggedIn": true,
		"user":     current,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Logout(w, r)
	if errors.Is(err, session.ErrNoSession) {
		utils.WriteError(w, h.logger, utils.InvalidOperation("No user logged in"))
		return
	}
	if err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.Envelope{"success": false, "error": "Error logging out"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Logout successful",
	})
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"count":   len(users),
		"users":   users,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := utils.GetIdentity(r)

	var in ProfileInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.ID, in)
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	if err := h.sessions.Refresh(w, r, user.Identity()); err != nil {
		h.logger.Error("failed to refresh session after profile update", zap.String("userId", user.ID), zap.Error(err))
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Profile updated successfully",
		"user": utils.Envelope{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"bio":   user.Bio,
		},
	})
}

func (h *Handler) UpdateProfilePicture(w http.ResponseWriter, r *http.Request) {
	identity, _ := utils.GetIdentity(r)

	var req struct {
		ProfilePicture string `json:"profilePicture"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	if err := h.service.UpdatePicture(r.Context(), identity.ID, req.ProfilePicture); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":        true,
		"message":        "Profile picture updated successfully",
		"profilePicture": req.ProfilePicture,
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := utils.GetIdentity(r)

	profile, err := h.service.PublicProfile(r.Context(), identity.ID, mux.Vars(r)["email"])
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":     true,
		"user":        profile.User,
		"posts":       profile.Posts,
		"postsCount":  profile.PostsCount,
		"isFollowing": profile.IsFollowing,
	})
}
