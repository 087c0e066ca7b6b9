package handler

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/yong-jelly/usemap-sub002/internal/httputil"
	"github.com/yong-jelly/usemap-sub002/internal/model"
	"github.com/yong-jelly/usemap-sub002/internal/transport/http/middleware"
)

// AttachmentUploader is the part of service.MediaService the handler uses.
type AttachmentUploader interface {
	UploadAttachment(ctx context.Context, placeID, userID string, file multipart.File, header *multipart.FileHeader) (*model.AttachmentUploadResult, error)
}

type MediaHandler struct {
	mediaService AttachmentUploader
}

func NewMediaHandler(mediaService AttachmentUploader) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// UploadAttachment handles POST /places/{placeId}/comments/attachments
// Takes a multipart "file" and returns the key to put in image_paths.
func (h *MediaHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	placeID, ok := placeIDParam(w, r)
	if !ok {
		return
	}

	maxFormSize := int64(model.MaxAttachmentSizeBytes) + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 10MB limit")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "file is required")
		return
	}
	defer file.Close()

	res, err := h.mediaService.UploadAttachment(r.Context(), placeID, userID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 10MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			log.Printf("[ERROR] Upload attachment handler: user=%s place=%s err=%v", userID, placeID, err)
			httputil.WriteInternalError(w, "Failed to upload image")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, res)
}
