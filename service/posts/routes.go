package posts

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/config"
	"github.com/terrascenik/server/monitoring"
)

type PostHandler struct {
	service *Service
	uploads config.Uploads
	logger  *zap.Logger
}

func NewPostHandler(service *Service, uploads config.Uploads, logger *zap.Logger) *PostHandler {
	return &PostHandler{service: service, uploads: uploads, logger: logger}
}

func (h *PostHandler) RegisterRoutes(router *mux.Router, requireLogin, optionalLogin mux.MiddlewareFunc) {
	// Post routes
	router.Handle("/contents", requireLogin(http.HandlerFunc(h.CreatePost))).Methods("POST")
	router.Handle("/contents", optionalLogin(http.HandlerFunc(h.SearchPosts))).Methods("GET")
	router.Handle("/contents/my", requireLogin(http.HandlerFunc(h.GetMyPosts))).Methods("GET")
	router.Handle("/contents/{postId}", optionalLogin(http.HandlerFunc(h.GetPost))).Methods("GET")
	router.Handle("/contents/{postId}", requireLogin(http.HandlerFunc(h.UpdatePost))).Methods("PUT")
	router.Handle("/contents/{postId}", requireLogin(http.HandlerFunc(h.DeletePost))).Methods("DELETE")

	// Like routes
	router.Handle("/contents/{postId}/like", requireLogin(http.HandlerFunc(h.LikePost))).Methods("POST")
	router.Handle("/contents/{postId}/like", requireLogin(http.HandlerFunc(h.UnlikePost))).Methods("DELETE")
}

// CreatePost creates a post authored by the session user
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	var in PostInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	post, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}
	monitoring.PostsCreated.Inc()

	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{
		"success": true,
		"message": "Post created successfully",
		"post":    post,
	})
}

// SearchPosts matches caption or location
func (h *PostHandler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	posts, err := h.service.Search(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"count":   len(posts),
		"posts":   posts,
	})
}

func (h *PostHandler) GetMyPosts(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	posts, err := h.service.Mine(r.Context(), user.ID)
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"count":   len(posts),
		"posts":   posts,
	})
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	post, err := h.service.Get(r.Context(), user.ID, mux.Vars(r)["postId"])
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"post":    post,
	})
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	var in PostInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	if err := h.service.Update(r.Context(), user.ID, mux.Vars(r)["postId"], in); err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Post updated successfully",
	})
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	post, err := h.service.Delete(r.Context(), user.ID, mux.Vars(r)["postId"])
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}

	h.removeUnusedUpload(r.Context(), post.ImageURL)

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Post deleted successfully",
	})
}

// removeUnusedUpload deletes an image uploaded to this server once no post
// references it. image_url is client supplied, so other posts may share it.
func (h *PostHandler) removeUnusedUpload(ctx context.Context, imageURL string) {
	if imageURL == "" || !strings.HasPrefix(imageURL, h.uploads.PublicPath) {
		return
	}
	inUse, err := h.service.ImageInUse(ctx, imageURL)
	if err != nil {
		h.logger.Warn("could not check image references", zap.String("image", imageURL), zap.Error(err))
		return
	}
	if inUse {
		return
	}
	if err := utils.DeleteImage(h.uploads.Dir, imageURL); err != nil {
		h.logger.Warn("failed to remove uploaded image", zap.String("image", imageURL), zap.Error(err))
	}
}

func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	count, err := h.service.Like(r.Context(), user.ID, mux.Vars(r)["postId"])
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}
	monitoring.LikesChanged.WithLabelValues("like").Inc()

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":   true,
		"message":   "Post liked successfully",
		"likeCount": count,
	})
}

func (h *PostHandler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	user, _ := utils.GetIdentity(r)

	count, err := h.service.Unlike(r.Context(), user.ID, mux.Vars(r)["postId"])
	if err != nil {
		utils.WriteError(w, h.logger, err)
		return
	}
	monitoring.LikesChanged.WithLabelValues("unlike").Inc()

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":   true,
		"message":   "Post unliked successfully",
		"likeCount": count,
	})
}
