package upload

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/config"
)

type Handler struct {
	cfg    config.Uploads
	logger *zap.Logger
}

func NewHandler(cfg config.Uploads, logger *zap.Logger) *Handler {
	return &Handler{cfg: cfg, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router, requireLogin mux.MiddlewareFunc) {
	router.Handle("/upload", requireLogin(http.HandlerFunc(h.UploadImage))).Methods("POST")
}

// RegisterStatic serves uploaded files read-only under the public path.
func (h *Handler) RegisterStatic(router *mux.Router) {
	files := http.StripPrefix(h.cfg.PublicPath, http.FileServer(http.Dir(h.cfg.Dir)))
	router.PathPrefix(h.cfg.PublicPath).Handler(files).Methods("GET", "HEAD")
}

// UploadImage stores the multipart field "image" and returns its public path.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxSize+1<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, h.logger, utils.Validation("File is too large"))
			return
		}
		utils.WriteError(w, h.logger, utils.Validation("No file uploaded"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.WriteError(w, h.logger, utils.Validation("No file uploaded"))
		return
	}
	defer file.Close()

	saved, err := utils.SaveImage(file, header, h.cfg.Dir, h.cfg.PublicPath, h.cfg.MaxSize)
	if err != nil {
		if utils.KindOf(err) == utils.KindValidation {
			utils.WriteError(w, h.logger, err)
			return
		}
		h.logger.Error("upload failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.Envelope{"success": false, "error": "Error uploading file"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success":  true,
		"message":  "File uploaded successfully",
		"filename": saved.Filename,
		"path":     saved.Path,
		"size":     saved.Size,
		"mimetype": saved.MimeType,
	})
}
