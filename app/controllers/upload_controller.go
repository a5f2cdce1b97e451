package controllers

import (
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/pkg/ctx"
)

const maxImageBytes = 5 << 20

type UploadController struct {
	uploads *services.UploadService
}

func NewUploadController(uploads *services.UploadService) *UploadController {
	return &UploadController{uploads: uploads}
}

type imageBody struct {
	Filename    string `json:"filename" validate:"max=255"`
	ContentType string `json:"contentType" validate:"max=100"`
	Data        string `json:"data" validate:"required"`
}

// Image accepts a multipart "file" field or a JSON body carrying base64 data.
// Storage failures still answer 201 with an inline data URL.
func (u *UploadController) Image(c *ctx.Context) {
	mediaType, _, _ := mime.ParseMediaType(c.Header("Content-Type"))

	var in services.UploadInput
	if mediaType == "multipart/form-data" {
		c.R.Body = http.MaxBytesReader(c.W, c.R.Body, maxImageBytes+1<<20)
		file, header, err := c.R.FormFile("file")
		if err != nil {
			c.ValidationError(map[string]string{"file": "file is required"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
		if err != nil {
			c.Error(http.StatusBadRequest, "could not read upload")
			return
		}
		in = services.UploadInput{Filename: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: data}
	} else {
		var body imageBody
		if !c.BindJSON(&body) {
			return
		}
		raw := body.Data
		if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i > 0 {
			if body.ContentType == "" {
				body.ContentType = raw[len("data:"):i]
			}
			raw = raw[i+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			c.ValidationError(map[string]string{"data": "data must be base64"})
			return
		}
		in = services.UploadInput{Filename: body.Filename, ContentType: body.ContentType, Data: data}
	}

	if len(in.Data) == 0 {
		c.ValidationError(map[string]string{"file": "file is empty"})
		return
	}
	if len(in.Data) > maxImageBytes {
		c.Error(http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	c.Created(u.uploads.Upload(c.Context(), in))
}
