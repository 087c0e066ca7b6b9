package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode

	domain "github.com/yong-jelly/usemap-sub002/internal/model"
	"github.com/yong-jelly/usemap-sub002/internal/storage"
)

// maxSlugLength bounds the readable part of an attachment key.
const maxSlugLength = 40

// MediaService stores comment images in object storage.
type MediaService struct {
	store storage.ObjectStore
}

func NewMediaService(store storage.ObjectStore) *MediaService {
	return &MediaService{store: store}
}

// UploadAttachment enforces size/type, shrinks the image to fit the maximum
// dimension as JPEG, and stores it under the uploader's prefix for the place.
// The returned key is what a comment's image_paths should reference.
func (s *MediaService) UploadAttachment(ctx context.Context, placeID, userID string, file multipart.File, header *multipart.FileHeader) (*domain.AttachmentUploadResult, error) {
	data, _, err := readAndValidateImage(file, header, domain.MaxAttachmentSizeBytes)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := fitToJPEG(data, domain.AttachmentMaxDimension, domain.AttachmentJPEGQuality)
	if err != nil {
		return nil, err
	}

	key := attachmentKey(placeID, userID, header.Filename)
	if err := s.store.Put(ctx, key, jpegBytes, domain.ContentTypeJPEG, domain.AttachmentCacheControl); err != nil {
		return nil, err
	}

	log.Printf("[MediaService] Upload OK: place=%s user=%s key=%s bytes=%d", placeID, userID, key, len(jpegBytes))
	return &domain.AttachmentUploadResult{URL: s.store.PublicURL(key), Key: key}, nil
}

// DeleteAttachments removes stored comment images. Empty keys are ignored.
func (s *MediaService) DeleteAttachments(ctx context.Context, keys []string) error {
	var valid []string
	for _, k := range keys {
		if k != "" {
			valid = append(valid, k)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	return s.store.Delete(ctx, valid...)
}

// attachmentKey builds comments/{place}/{user}/{uuid}-{slug}.jpg. The slug
// keeps the uploaded file name readable in the bucket; the uuid keeps keys unique.
func attachmentKey(placeID, userID, filename string) string {
	name := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name = slug.Make(name)
	if len(name) > maxSlugLength {
		name = strings.Trim(name[:maxSlugLength], "-")
	}
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s%s-%s%s", domain.AttachmentPrefix(placeID, userID), uuid.NewString(), name, domain.AttachmentExt)
}

// readAndValidateImage loads the upload into memory with size and type checks.
func readAndValidateImage(file multipart.File, header *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	if header.Size > maxSize {
		return nil, "", domain.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", domain.ErrFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !domain.IsAllowedImageType(contentType) {
		return nil, "", domain.ErrInvalidImageType
	}

	return data, contentType, nil
}

// fitToJPEG scales the image down to fit a maxDim square, keeping its aspect
// ratio, and encodes it as JPEG. Smaller images keep their size.
func fitToJPEG(data []byte, maxDim, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, domain.ErrInvalidImageType
	}

	fitted := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
