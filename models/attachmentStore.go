package models

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

const MaxAttachmentSizeBytes int64 = 5 * 1024 * 1024

const thumbnailWidth = 200

// MakeThumbnail renders a 200px wide JPEG preview.
func MakeThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// GCSAttachmentStore keeps attachments in the configured bucket.
type GCSAttachmentStore struct {
	Thumbnails bool
}

func NewGCSAttachmentStore() *GCSAttachmentStore {
	return &GCSAttachmentStore{Thumbnails: config.AttachmentThumbnailsEnabled()}
}

// Put uploads the payload under its proposed key after sniffing the content type.
func (s *GCSAttachmentStore) Put(ctx context.Context, file AttachmentFile) (string, error) {
	if int64(len(file.Data)) > MaxAttachmentSizeBytes {
		return "", fmt.Errorf("%s exceeds 5MB limit", file.FileName)
	}
	if file.ObjectKey == "" {
		return "", fmt.Errorf("object key is required for %s", file.FileName)
	}
	contentType, err := utils.UploadFileToGCS(ctx, file.ObjectKey, bytes.NewReader(file.Data))
	if err != nil {
		return "", err
	}

	if s.Thumbnails && isImage(contentType) {
		// a missing preview never fails the upload
		if thumb, err := MakeThumbnail(file.Data); err != nil {
			config.LogError(config.GetLogger(), "GCSAttachmentStore", "Put", "make thumbnail", file.ObjectKey, err)
		} else if err := utils.UploadBytesToGCS(ctx, ThumbnailKey(file.ObjectKey), thumb, "image/jpeg"); err != nil {
			config.LogError(config.GetLogger(), "GCSAttachmentStore", "Put", "upload thumbnail", file.ObjectKey, err)
		}
	}

	config.GetLogger().WithFields(logrus.Fields{
		"object_key":   file.ObjectKey,
		"content_type": contentType,
		"size":         len(file.Data),
	}).Info("[attachment.put]")
	return file.ObjectKey, nil
}

// Delete removes the blob and its preview, if any.
func (s *GCSAttachmentStore) Delete(ctx context.Context, key string) error {
	if err := utils.DeleteObjectFromGCS(ctx, key); err != nil {
		return err
	}
	if err := utils.DeleteObjectFromGCS(ctx, ThumbnailKey(key)); err != nil {
		config.LogError(config.GetLogger(), "GCSAttachmentStore", "Delete", "delete thumbnail", key, err)
	}
	return nil
}

func (s *GCSAttachmentStore) Exists(ctx context.Context, key string) (bool, error) {
	return utils.ObjectExistsInGCS(ctx, key)
}

func (s *GCSAttachmentStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	r, err := utils.ReadObjectFromGCS(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return r, r.Attrs.ContentType, nil
}

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryAttachmentStore is the STORAGE_PROVIDER=memory backend for local runs.
type MemoryAttachmentStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryAttachmentStore() *MemoryAttachmentStore {
	return &MemoryAttachmentStore{objects: map[string]memoryObject{}}
}

func (s *MemoryAttachmentStore) Put(ctx context.Context, file AttachmentFile) (string, error) {
	if file.ObjectKey == "" {
		return "", fmt.Errorf("object key is required for %s", file.FileName)
	}
	contentType := utils.DetectMimeType(file.ObjectKey, file.Data)
	if !utils.IsAllowedMimeType(contentType) {
		return "", fmt.Errorf("%w: %s", utils.ErrorUnsupportedFile, contentType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[file.ObjectKey] = memoryObject{data: append([]byte(nil), file.Data...), contentType: contentType}
	return file.ObjectKey, nil
}

func (s *MemoryAttachmentStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryAttachmentStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryAttachmentStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", utils.ErrorRecordNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}
