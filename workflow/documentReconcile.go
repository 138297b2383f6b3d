package workflow

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/mmdatafocus/fleet_backend/workflow")

// Op names the step a RowOutcome reports on.
type Op string

const (
	OpCreate     Op = "create"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpSkip       Op = "skip_incomplete"
	OpUpload     Op = "upload"
	OpBlobDelete Op = "blob_delete"
	OpPack       Op = "pack"
	OpAudit      Op = "audit"
)

// DocumentRepository persists document rows. Calls are never retried.
type DocumentRepository interface {
	Create(ctx context.Context, rec *models.DocumentRecord) (*models.DocumentRecord, error)
	Update(ctx context.Context, ownerKey string, patch *models.DocumentPatch) error
	Delete(ctx context.Context, ownerKey string, id string) error
}

type AuditLog interface {
	Append(ctx context.Context, entry *models.History) error
}

// OwnerPackStore applies the net pack change of one save to the owner row.
type OwnerPackStore interface {
	SavePack(ctx context.Context, header models.OwnerHeader, change models.PackChange) (models.StringList, error)
}

// Row is one edited row. RowKey is assigned when the row is created in the editor and never changes.
// Record.AttachmentKey may only repeat the persisted key or be cleared; a new key arrives either as a
// pending file or as StagedKey, an object already uploaded through a signed URL.
type Row struct {
	RowKey    string                `json:"rowKey"`
	Record    models.DocumentRecord `json:"record"`
	StagedKey string                `json:"stagedKey,omitempty"`
}

type ReconcileInput struct {
	Owner models.OwnerHeader
	Actor string
	// Edited is the full edited list; rows missing from it are deleted.
	Edited   []Row
	Original []*models.DocumentRecord
	// Pending is keyed by row key.
	Pending map[string]PendingAttachment
}

type RowOutcome struct {
	RowKey   string `json:"rowKey,omitempty"`
	RecordID string `json:"recordId,omitempty"`
	Name     string `json:"name,omitempty"`
	Op       Op     `json:"op"`
	OK       bool   `json:"ok"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
	// Saved is the row as persisted, set for successful creates and updates.
	Saved *models.DocumentRecord `json:"saved,omitempty"`
}

type ReconcileResult struct {
	Created           int               `json:"created"`
	Updated           int               `json:"updated"`
	Deleted           int               `json:"deleted"`
	SkippedIncomplete []string          `json:"skippedIncomplete"`
	UploadFailures    int               `json:"uploadFailures"`
	Success           bool              `json:"success"`
	NoChanges         bool              `json:"noChanges"`
	Outcomes          []RowOutcome      `json:"outcomes"`
	Pack              models.StringList `json:"pack,omitempty"`
	Audit             *models.History   `json:"audit,omitempty"`
}

// Reconciler saves an owner's edited document list in one pass.
type Reconciler struct {
	Documents DocumentRepository
	Uploads   *UploadCoordinator
	Audit     AuditLog
	Owners    OwnerPackStore
	Logger    *logrus.Logger
	Now       func() time.Time
	Location  *time.Location
}

func NewReconciler(docs DocumentRepository, attachments AttachmentStore, audit AuditLog, owners OwnerPackStore, logger *logrus.Logger, loc *time.Location) *Reconciler {
	return &Reconciler{
		Documents: docs,
		Uploads:   NewUploadCoordinator(attachments, logger),
		Audit:     audit,
		Owners:    owners,
		Logger:    logger,
		Now:       time.Now,
		Location:  loc,
	}
}

type plannedRow struct {
	Row
	kind     *models.RecordKind
	original *models.DocumentRecord
	// freshKey is a blob added by this save; it is removed again if the row is not written.
	freshKey string
}

type reconcileRun struct {
	r      *Reconciler
	input  ReconcileInput
	stamp  AuditStamp
	log    *logrus.Entry
	result ReconcileResult
	failed bool
	lines  []string
	pack   models.PackChange

	creates           int
	deletes           int
	attachOnlyUpdates int
	otherUpdates      int
}

// Reconcile validates the whole input, uploads pending files, writes creates and updates in row
// order, then deletes, then the owner pack, then one audit entry. Only a ValidationError is
// returned as an error; write failures are reported through the result.
func (r *Reconciler) Reconcile(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	start := time.Now()
	defer func() { reconcileDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_key", input.Owner.OwnerKey),
		attribute.Int("rows.edited", len(input.Edited)),
		attribute.Int("rows.original", len(input.Original)),
		attribute.Int("attachments.pending", len(input.Pending)),
	)

	rows, err := r.validate(ctx, &input)
	if err == nil {
		err = r.checkStaged(ctx, rows)
	}
	if err != nil {
		reconcileTotal.WithLabelValues("invalid").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Writes issued from here on complete even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	run := &reconcileRun{
		r:     r,
		input: input,
		stamp: NewAuditStamp(input.Actor, now(), r.Location),
		log: r.Logger.WithFields(logrus.Fields{
			"owner_key":      input.Owner.OwnerKey,
			"correlation_id": correlationId,
		}),
		result: ReconcileResult{SkippedIncomplete: []string{}, Outcomes: []RowOutcome{}},
	}

	run.resolveUploads(ctx, rows)
	for _, row := range rows {
		run.writeRow(ctx, row)
	}
	run.deleteMissing(ctx, rows)
	run.savePack(ctx)
	run.appendAudit(ctx)

	result := run.result
	result.Success = !run.failed
	switch {
	case run.failed:
		reconcileTotal.WithLabelValues("partial").Inc()
		span.SetStatus(codes.Error, "one or more writes failed")
	case result.NoChanges:
		reconcileTotal.WithLabelValues("no_changes").Inc()
	default:
		reconcileTotal.WithLabelValues("success").Inc()
	}
	span.SetAttributes(
		attribute.Int("rows.created", result.Created),
		attribute.Int("rows.updated", result.Updated),
		attribute.Int("rows.deleted", result.Deleted),
	)
	return &result, nil
}

func (r *Reconciler) validate(ctx context.Context, input *ReconcileInput) ([]*plannedRow, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	input.Owner.OwnerKey = strings.TrimSpace(input.Owner.OwnerKey)
	input.Owner.Name = strings.TrimSpace(input.Owner.Name)
	if input.Owner.OwnerKey == "" {
		return nil, newValidationError("ownerKey", "owner key is required")
	}
	if input.Owner.Name == "" {
		return nil, newValidationError("name", "name is required")
	}
	if err := utils.ValidateStruct(input.Owner); err != nil {
		fields := utils.ProcessValidationErrors(err)
		if len(fields) == 0 {
			return nil, newValidationError("owner", "%v", err)
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, newValidationError(names[0], "failed %s validation", fields[names[0]])
	}

	originals := make(map[string]*models.DocumentRecord, len(input.Original))
	for _, o := range input.Original {
		if o == nil || o.ID == "" {
			return nil, newValidationError("original", "persisted row without id")
		}
		if o.OwnerKey != "" && o.OwnerKey != input.Owner.OwnerKey {
			return nil, newValidationError("original", "row %s belongs to another owner", o.ID)
		}
		if _, err := models.GetRecordKind(o.Kind); err != nil {
			return nil, newValidationError("original", "row %s has unknown kind %q", o.ID, o.Kind)
		}
		originals[o.ID] = o
	}

	rowKeys := make(map[string]bool, len(input.Edited))
	ids := make(map[string]bool, len(input.Edited))
	rows := make([]*plannedRow, 0, len(input.Edited))
	for i := range input.Edited {
		row := input.Edited[i]
		if row.RowKey == "" {
			return nil, newValidationError("rows", "row %d has no row key", i)
		}
		if rowKeys[row.RowKey] {
			return nil, newValidationError("rows", "duplicate row key %s", row.RowKey)
		}
		rowKeys[row.RowKey] = true

		kind, err := models.GetRecordKind(row.Record.Kind)
		if err != nil {
			return nil, newValidationError("rows", "row %s has unknown kind %q", row.RowKey, row.Record.Kind)
		}
		if err := row.Record.ValidateDates(); err != nil {
			return nil, newValidationError("rows", "row %s: %v", row.RowKey, err)
		}
		if row.Record.OwnerKey != "" && row.Record.OwnerKey != input.Owner.OwnerKey {
			return nil, newValidationError("rows", "row %s belongs to another owner", row.RowKey)
		}
		row.Record.OwnerKey = input.Owner.OwnerKey

		var original *models.DocumentRecord
		if row.Record.ID != "" {
			if ids[row.Record.ID] {
				return nil, newValidationError("rows", "record %s appears twice", row.Record.ID)
			}
			ids[row.Record.ID] = true
			original = originals[row.Record.ID]
			if original == nil {
				return nil, newValidationError("rows", "record %s does not belong to this owner", row.Record.ID)
			}
			if original.Kind != row.Record.Kind {
				return nil, newValidationError("rows", "record %s cannot change kind", row.Record.ID)
			}
		}

		planned := &plannedRow{Row: row, kind: kind, original: original}
		storedKey := ""
		if original != nil {
			storedKey = original.AttachmentKey
		}
		if row.StagedKey == "" {
			if row.Record.AttachmentKey != "" && row.Record.AttachmentKey != storedKey {
				return nil, newValidationError("rows", "row %s references an attachment it does not own", row.RowKey)
			}
		} else {
			key := utils.ExtractObjectKeyFromURL(row.StagedKey)
			if businessId == "" || key == "" || !strings.HasPrefix(key, businessId+"/") {
				return nil, newValidationError("rows", "row %s has an invalid staged key", row.RowKey)
			}
			if _, clash := input.Pending[row.RowKey]; clash {
				return nil, newValidationError("rows", "row %s has both a file and a staged upload", row.RowKey)
			}
			planned.Record.AttachmentKey = key
			if key != storedKey {
				planned.freshKey = key
			}
		}
		rows = append(rows, planned)
	}

	for rowKey, p := range input.Pending {
		if !rowKeys[rowKey] {
			return nil, newValidationError("files", "file for unknown row %s", rowKey)
		}
		if len(p.File.Data) == 0 {
			return nil, newValidationError("files", "file for row %s is empty", rowKey)
		}
		if int64(len(p.File.Data)) > models.MaxAttachmentSizeBytes {
			return nil, newValidationError("files", "file for row %s exceeds %d bytes", rowKey, models.MaxAttachmentSizeBytes)
		}
	}
	return rows, nil
}

// checkStaged confirms every staged key was actually uploaded before anything is written.
func (r *Reconciler) checkStaged(ctx context.Context, rows []*plannedRow) error {
	for _, row := range rows {
		if row.freshKey == "" {
			continue
		}
		exists, err := r.Uploads.Store.Exists(ctx, row.freshKey)
		if err != nil {
			return errors.Wrapf(err, "check staged upload %s", row.freshKey)
		}
		if !exists {
			return newValidationError("rows", "staged upload for row %s not found", row.RowKey)
		}
	}
	return nil
}

// discardFresh removes a blob this save added for a row that ended up not written.
func (run *reconcileRun) discardFresh(ctx context.Context, row *plannedRow) {
	if row.freshKey == "" {
		return
	}
	if err := run.r.Uploads.RemoveBestEffort(ctx, row.RowKey, row.freshKey); err != nil {
		run.outcome(RowOutcome{RowKey: row.RowKey, RecordID: row.Record.ID, Name: row.Record.DisplayName(), Op: OpBlobDelete, Err: err})
	}
}

func (run *reconcileRun) outcome(o RowOutcome) {
	if o.Err != nil {
		o.Error = o.Err.Error()
	} else {
		o.OK = true
	}
	run.result.Outcomes = append(run.result.Outcomes, o)
}

func (run *reconcileRun) skip(ctx context.Context, row *plannedRow) {
	name := row.Record.DisplayName()
	skippedIncompleteTotal.Inc()
	run.result.SkippedIncomplete = append(run.result.SkippedIncomplete, name)
	run.outcome(RowOutcome{RowKey: row.RowKey, RecordID: row.Record.ID, Name: name, Op: OpSkip})
	run.log.WithField("row_key", row.RowKey).Warnf("[reconcile] %q has an attachment but no expiry date, not saved", name)
	run.discardFresh(ctx, row)
}

// resolveUploads uploads pending files for rows that will be saved and merges the new keys.
// A row whose expiry is empty would be skipped anyway, so its file is not uploaded.
func (run *reconcileRun) resolveUploads(ctx context.Context, rows []*plannedRow) {
	var pending []PendingAttachment
	for _, row := range rows {
		p, ok := run.input.Pending[row.RowKey]
		if !ok {
			continue
		}
		if row.kind.HasExpiry() && row.Record.ExpiryValue(row.kind) == "" {
			continue
		}
		p.RowKey = row.RowKey
		pending = append(pending, p)
	}

	uploaded := run.r.Uploads.Resolve(ctx, pending)
	for _, row := range rows {
		if key, ok := uploaded.Keys[row.RowKey]; ok {
			row.Record.AttachmentKey = key
			row.freshKey = key
		}
	}
	failedRows := make(map[string]bool, len(uploaded.Failures))
	for _, f := range uploaded.Failures {
		failedRows[f.RowKey] = true
	}
	for _, row := range rows {
		if !failedRows[row.RowKey] {
			continue
		}
		row.Record.AttachmentKey = ""
		if row.original != nil {
			row.Record.AttachmentKey = row.original.AttachmentKey
		}
	}
	for _, f := range uploaded.Failures {
		run.result.UploadFailures++
		run.outcome(RowOutcome{RowKey: f.RowKey, Name: f.FileName, Op: OpUpload, Err: f})
	}
}

func (run *reconcileRun) pendingRow(row *plannedRow) bool {
	_, ok := run.input.Pending[row.RowKey]
	return ok
}

func (run *reconcileRun) writeRow(ctx context.Context, row *plannedRow) {
	if run.pendingRow(row) && row.kind.HasExpiry() && row.Record.ExpiryValue(row.kind) == "" {
		run.skip(ctx, row)
		return
	}

	diff := DiffDocument(row.original, &row.Record, row.kind, run.stamp)
	if diff.Incomplete {
		run.skip(ctx, row)
		return
	}
	if !diff.Changed {
		return
	}

	log := run.log.WithFields(logrus.Fields{"row_key": row.RowKey, "record_id": row.Record.ID})
	if row.original == nil {
		run.create(ctx, row, diff, log)
		return
	}
	run.update(ctx, row, diff, log)
}

func (run *reconcileRun) create(ctx context.Context, row *plannedRow, diff DiffResult, log *logrus.Entry) {
	ctx, span := tracer.Start(ctx, "DocumentRepository.Create")
	defer span.End()

	name := row.Record.DisplayName()
	created, err := run.r.Documents.Create(ctx, &row.Record)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		documentWritesTotal.WithLabelValues(string(OpCreate), "error").Inc()
		run.failed = true
		log.WithError(err).Error("[reconcile] create failed")
		run.outcome(RowOutcome{RowKey: row.RowKey, Name: name, Op: OpCreate,
			Err: &WriteFailure{Op: OpCreate, Name: name, Err: err}})
		run.discardFresh(ctx, row)
		return
	}

	documentWritesTotal.WithLabelValues(string(OpCreate), "ok").Inc()
	run.result.Created++
	run.creates++
	run.lines = append(run.lines, diff.Descriptions...)
	run.pack.Added = append(run.pack.Added, created.ID)
	run.outcome(RowOutcome{RowKey: row.RowKey, RecordID: created.ID, Name: name, Op: OpCreate, Saved: created})
}

func (run *reconcileRun) update(ctx context.Context, row *plannedRow, diff DiffResult, log *logrus.Entry) {
	ctx, span := tracer.Start(ctx, "DocumentRepository.Update")
	defer span.End()

	name := row.Record.DisplayName()
	removedKey := row.original.AttachmentKey
	if removedKey != "" && row.Record.AttachmentKey == "" && !run.pendingRow(row) {
		if err := run.r.Uploads.RemoveBestEffort(ctx, row.RowKey, removedKey); err != nil {
			run.outcome(RowOutcome{RowKey: row.RowKey, RecordID: row.Record.ID, Name: name, Op: OpBlobDelete, Err: err})
		}
	}

	if err := run.r.Documents.Update(ctx, run.input.Owner.OwnerKey, diff.Patch); err != nil {
		span.SetStatus(codes.Error, err.Error())
		documentWritesTotal.WithLabelValues(string(OpUpdate), "error").Inc()
		run.failed = true
		log.WithError(err).Error("[reconcile] update failed")
		run.outcome(RowOutcome{RowKey: row.RowKey, RecordID: row.Record.ID, Name: name, Op: OpUpdate,
			Err: &WriteFailure{Op: OpUpdate, RecordID: row.Record.ID, Name: name, Err: err}})
		run.discardFresh(ctx, row)
		return
	}

	documentWritesTotal.WithLabelValues(string(OpUpdate), "ok").Inc()
	run.result.Updated++
	if attachmentOnly(diff.Changes) {
		run.attachOnlyUpdates++
	} else {
		run.otherUpdates++
	}
	run.lines = append(run.lines, diff.Descriptions...)
	saved := *row.original
	if diff.Patch != nil {
		diff.Patch.Apply(&saved)
	}
	run.outcome(RowOutcome{RowKey: row.RowKey, RecordID: row.Record.ID, Name: name, Op: OpUpdate, Saved: &saved})
}

func attachmentOnly(changes []FieldChange) bool {
	for _, c := range changes {
		if c.Column != models.ColumnAttachmentKey {
			return false
		}
	}
	return len(changes) > 0
}

// deleteMissing removes persisted rows that are absent from the edited list, blob first.
func (run *reconcileRun) deleteMissing(ctx context.Context, rows []*plannedRow) {
	kept := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Record.ID != "" {
			kept[row.Record.ID] = true
		}
	}

	for _, original := range run.input.Original {
		if kept[original.ID] {
			continue
		}
		kind, _ := models.GetRecordKind(original.Kind)
		name := original.DisplayName()
		log := run.log.WithField("record_id", original.ID)

		if original.AttachmentKey != "" {
			if err := run.r.Uploads.RemoveBestEffort(ctx, "", original.AttachmentKey); err != nil {
				run.outcome(RowOutcome{RecordID: original.ID, Name: name, Op: OpBlobDelete, Err: err})
			}
		}

		if err := run.deleteRecord(ctx, original.ID); err != nil {
			documentWritesTotal.WithLabelValues(string(OpDelete), "error").Inc()
			run.failed = true
			log.WithError(err).Error("[reconcile] delete failed")
			run.outcome(RowOutcome{RecordID: original.ID, Name: name, Op: OpDelete,
				Err: &WriteFailure{Op: OpDelete, RecordID: original.ID, Name: name, Err: err}})
			continue
		}

		documentWritesTotal.WithLabelValues(string(OpDelete), "ok").Inc()
		run.result.Deleted++
		run.deletes++
		run.lines = append(run.lines, run.stamp.FormatRemoved(kind.EntityLabel, name))
		run.pack.Removed = append(run.pack.Removed, original.ID)
		run.outcome(RowOutcome{RecordID: original.ID, Name: name, Op: OpDelete})
	}
}

func (run *reconcileRun) deleteRecord(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "DocumentRepository.Delete")
	defer span.End()
	err := run.r.Documents.Delete(ctx, run.input.Owner.OwnerKey, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (run *reconcileRun) savePack(ctx context.Context) {
	if run.r.Owners == nil || run.pack.Empty() {
		return
	}
	ctx, span := tracer.Start(ctx, "OwnerPackStore.SavePack")
	defer span.End()

	pack, err := run.r.Owners.SavePack(ctx, run.input.Owner, run.pack)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		run.failed = true
		run.log.WithError(err).Error("[reconcile] owner pack write failed")
		run.outcome(RowOutcome{Name: run.input.Owner.Name, Op: OpPack,
			Err: &WriteFailure{Op: OpPack, RecordID: run.input.Owner.OwnerKey, Name: run.input.Owner.Name, Err: err}})
		return
	}
	run.result.Pack = pack
}

func (run *reconcileRun) action() string {
	switch {
	case run.creates > 0 && run.deletes == 0 && run.attachOnlyUpdates+run.otherUpdates == 0:
		return models.HistoryActionCreate
	case run.deletes > 0 && run.creates == 0 && run.attachOnlyUpdates+run.otherUpdates == 0:
		return models.HistoryActionDelete
	case run.attachOnlyUpdates > 0 && run.otherUpdates == 0 && run.creates == 0 && run.deletes == 0:
		return models.HistoryActionUpdateAttachment
	}
	return models.HistoryActionUpdate
}

// appendAudit writes the single audit entry for this save, if anything was written.
func (run *reconcileRun) appendAudit(ctx context.Context) {
	if len(run.lines) == 0 {
		run.result.NoChanges = !run.failed
		return
	}

	ctx, span := tracer.Start(ctx, "AuditLog.Append")
	defer span.End()

	entry := &models.History{
		EntityType: run.input.Owner.OwnerType,
		EntityId:   run.input.Owner.OwnerKey,
		Action:     run.action(),
		Details:    strings.Join(run.lines, ""),
		UserName:   run.stamp.Actor,
		CreatedAt:  run.stamp.At,
	}
	if err := run.r.Audit.Append(ctx, entry); err != nil {
		span.SetStatus(codes.Error, err.Error())
		run.failed = true
		run.log.WithError(err).Error("[reconcile] audit write failed")
		run.outcome(RowOutcome{Name: run.input.Owner.Name, Op: OpAudit,
			Err: &WriteFailure{Op: OpAudit, RecordID: run.input.Owner.OwnerKey, Name: run.input.Owner.Name, Err: errors.Wrap(err, "append history")}})
		return
	}
	run.result.Audit = entry
}
