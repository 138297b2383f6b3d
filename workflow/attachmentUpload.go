package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// AttachmentStore is the blob store behind document attachments.
type AttachmentStore interface {
	Put(ctx context.Context, file models.AttachmentFile) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// PendingAttachment is a file chosen in the edit session and not yet uploaded.
type PendingAttachment struct {
	RowKey string
	File   models.AttachmentFile
}

type UploadResult struct {
	// Keys maps row key to the stored object key for every successful upload.
	Keys     map[string]string
	Failures []*UploadFailure
}

// UploadCoordinator turns pending files into storage keys before any record is written.
type UploadCoordinator struct {
	Store  AttachmentStore
	Logger *logrus.Logger
}

func NewUploadCoordinator(store AttachmentStore, logger *logrus.Logger) *UploadCoordinator {
	return &UploadCoordinator{Store: store, Logger: logger}
}

// Resolve uploads every pending file concurrently and waits for all of them.
// A failed upload is logged and reported; it never stops the others.
func (u *UploadCoordinator) Resolve(ctx context.Context, pending []PendingAttachment) UploadResult {
	result := UploadResult{Keys: make(map[string]string, len(pending))}
	if len(pending) == 0 {
		return result
	}

	ctx, span := tracer.Start(ctx, "UploadCoordinator.Resolve")
	span.SetAttributes(attribute.Int("pending", len(pending)))
	defer span.End()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, p := range pending {
		wg.Add(1)
		go func(p PendingAttachment) {
			defer wg.Done()
			key, err := u.put(ctx, p.File)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, &UploadFailure{RowKey: p.RowKey, FileName: p.File.FileName, Err: err})
				return
			}
			result.Keys[p.RowKey] = key
		}(p)
	}
	wg.Wait()

	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].RowKey < result.Failures[j].RowKey })
	for _, f := range result.Failures {
		attachmentUploadFailuresTotal.Inc()
		u.Logger.WithFields(logrus.Fields{
			"row_key":   f.RowKey,
			"file_name": f.FileName,
		}).WithError(f.Err).Error("[attachment.upload] failed")
	}
	return result
}

func (u *UploadCoordinator) put(ctx context.Context, file models.AttachmentFile) (key string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attachment store panicked: %v", r)
		}
	}()
	return u.Store.Put(ctx, file)
}

// RemoveBestEffort deletes a blob that no row references any more. Failure is logged and returned
// for the outcome list; callers carry on with the record write.
func (u *UploadCoordinator) RemoveBestEffort(ctx context.Context, rowKey string, key string) error {
	if key == "" {
		return nil
	}
	if err := u.Store.Delete(ctx, key); err != nil {
		attachmentDeleteFailuresTotal.Inc()
		u.Logger.WithFields(logrus.Fields{
			"row_key":    rowKey,
			"object_key": key,
		}).WithError(err).Warn("[attachment.delete] failed")
		return err
	}
	return nil
}
