package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxImageSize = 15 << 20 // 15 MB

// SavedImage describes an uploaded image on disk.
type SavedImage struct {
	Filename string
	Path     string
	Size     int64
	MimeType string
}

// SaveImage stores an uploaded image under dir and returns where it can be
// fetched from publicPath.
func SaveImage(file multipart.File, header *multipart.FileHeader, dir, publicPath string, maxSize int64) (*SavedImage, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	if header.Size > maxSize {
		return nil, Validation(fmt.Sprintf("File size exceeds maximum limit of %d MB", maxSize/(1<<20)))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !isValidImageType(ext) {
		return nil, Validation("Only image files are allowed")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s%s",
		time.Now().Format("20060102"),
		uuid.New().String(),
		ext,
	)
	filePath := filepath.Join(dir, filename)

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	// One extra byte detects bodies larger than the declared size.
	written, err := io.Copy(dst, io.LimitReader(file, maxSize+1))
	if err != nil {
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if written > maxSize {
		_ = os.Remove(filePath)
		return nil, Validation(fmt.Sprintf("File size exceeds maximum limit of %d MB", maxSize/(1<<20)))
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mimeTypes[ext]
	}

	return &SavedImage{
		Filename: filename,
		Path:     strings.TrimSuffix(publicPath, "/") + "/" + filename,
		Size:     written,
		MimeType: mimeType,
	}, nil
}

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func isValidImageType(ext string) bool {
	_, ok := mimeTypes[ext]
	return ok
}

// DeleteImage removes an image previously returned by SaveImage. Missing files
// are ignored.
func DeleteImage(dir, imageURL string) error {
	filename := filepath.Base(imageURL)
	filePath := filepath.Join(dir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	return os.Remove(filePath)
}
