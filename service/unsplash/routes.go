package unsplash

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/utils"
)

type Handler struct {
	client *Client
	logger *zap.Logger
}

func NewHandler(client *Client, logger *zap.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/unsplash", h.SearchPhotos).Methods("GET")
}

// SearchPhotos proxies an image search so the access key stays on the server.
func (h *Handler) SearchPhotos(w http.ResponseWriter, r *http.Request) {
	result, err := h.client.SearchPhotos(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("unsplash search failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.Envelope{"success": false})
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}
