package handler

import (
	"fmt"
	"net/http"

	"github.com/datachef-lab/taskify-backend/internal/task/service"
	"github.com/gin-gonic/gin"
)

// UploadHandler attachments for FILE inputs
type UploadHandler struct {
	svc     *service.UploadService
	maxSize int64
}

func NewUploadHandler(svc *service.UploadService, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = 32 << 20
	}
	return &UploadHandler{svc: svc, maxSize: maxSize}
}

// Upload POST /api/v1/uploads (multipart field "files" or "file")
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "cannot parse upload: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "no file uploaded")
		return
	}

	uploaded := make([]*service.StoredFile, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			BadRequest(c, fmt.Sprintf("cannot read %s: %v", fh.Filename, err))
			return
		}
		stored, err := h.svc.Store(c.Request.Context(), src, fh.Filename, fh.Size, fh.Header.Get("Content-Type"))
		src.Close()
		if err != nil {
			HandleError(c, err)
			return
		}
		uploaded = append(uploaded, stored)
	}

	Created(c, uploaded)
}
