package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/storage"
)

const uploadTimeout = 15 * time.Second

// UploadService stores images on the configured disk. When the disk is
// missing or fails, the image is returned inline as a data URL instead.
type UploadService struct {
	disk storage.Disk
}

// NewUploadService accepts a nil disk; every upload then falls back.
func NewUploadService(disk storage.Disk) *UploadService {
	return &UploadService{disk: disk}
}

type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadResult struct {
	URL    string `json:"url"`
	Stored bool   `json:"stored"`
}

// Upload never fails: the worst case is an inline data URL.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) UploadResult {
	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(in.Data)
	}

	if s.disk == nil {
		return fallback(contentType, in.Data)
	}

	key := "images/" + uuid.NewString() + extension(in.Filename, contentType)
	putCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	if err := s.disk.Put(putCtx, key, bytes.NewReader(in.Data), contentType); err != nil {
		logger.WithCtx(ctx).Warn("upload: storage failed, returning data url", "key", key, "error", err)
		return fallback(contentType, in.Data)
	}
	return UploadResult{URL: s.disk.URL(key), Stored: true}
}

// DataURL encodes data as a base64 data URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func fallback(contentType string, data []byte) UploadResult {
	return UploadResult{URL: DataURL(contentType, data)}
}

func extension(filename, contentType string) string {
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".bin"
}
