package graph

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/mmdatafocus/fleet_backend/workflow"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const (
	DefaultExpiringDays = 30

	codeBadUserInput = "BAD_USER_INPUT"

	messageNoChanges   = "No changes to save"
	messagePartialSave = "Some changes could not be saved. Please review and try again."
	messageSkippedRows = "Not saved because an attachment has no expiry date: "
)

func badInput(ctx context.Context, field string, format string, args ...interface{}) *gqlerror.Error {
	return &gqlerror.Error{
		Path:    graphql.GetPath(ctx),
		Message: fmt.Sprintf(format, args...),
		Extensions: map[string]interface{}{
			"code":  codeBadUserInput,
			"field": field,
		},
	}
}

// validationInput maps validator failures to a BAD_USER_INPUT error naming the first failing field.
func validationInput(ctx context.Context, err error) (*gqlerror.Error, bool) {
	fields := utils.ProcessValidationErrors(err)
	if _, plain := fields["error"]; plain || len(fields) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	gqlErr := badInput(ctx, names[0], "failed %s validation", fields[names[0]])
	gqlErr.Extensions["fields"] = fields
	return gqlErr, true
}

// pendingAttachment reads one uploaded file into memory and proposes its object key.
func pendingAttachment(businessId, ownerKey, rowKey string, file *graphql.Upload) (workflow.PendingAttachment, error) {
	if file.Size > models.MaxAttachmentSizeBytes {
		return workflow.PendingAttachment{}, fmt.Errorf("%s exceeds 5MB limit", file.Filename)
	}
	data, err := io.ReadAll(io.LimitReader(file.File, models.MaxAttachmentSizeBytes+1))
	if err != nil {
		return workflow.PendingAttachment{}, err
	}
	if int64(len(data)) > models.MaxAttachmentSizeBytes {
		return workflow.PendingAttachment{}, fmt.Errorf("%s exceeds 5MB limit", file.Filename)
	}
	contentType := utils.DetectMimeType(file.Filename, data)
	if !utils.IsAllowedMimeType(contentType) {
		return workflow.PendingAttachment{}, fmt.Errorf("%w: %s", utils.ErrorUnsupportedFile, file.Filename)
	}
	return workflow.PendingAttachment{
		RowKey: rowKey,
		File: models.AttachmentFile{
			ObjectKey:   models.NewAttachmentObjectKey(businessId, ownerKey, file.Filename),
			FileName:    file.Filename,
			ContentType: contentType,
			Data:        data,
		},
	}, nil
}

func reconcilePayloadFor(result *workflow.ReconcileResult) *ReconcilePayload {
	payload := &ReconcilePayload{ReconcileResult: result}
	switch {
	case !result.Success:
		payload.Message = messagePartialSave
	case result.NoChanges:
		payload.Message = messageNoChanges
	default:
		payload.Message = fmt.Sprintf("Saved: %d added, %d updated, %d removed", result.Created, result.Updated, result.Deleted)
	}
	if len(result.SkippedIncomplete) > 0 {
		warning := messageSkippedRows + strings.Join(result.SkippedIncomplete, ", ")
		payload.Warning = &warning
	}
	return payload
}
