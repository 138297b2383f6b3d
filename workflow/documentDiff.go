package workflow

import (
	"github.com/mmdatafocus/fleet_backend/models"
)

const attachmentLabel = "attachment"

// FieldChange is one differing column between the persisted and edited row.
type FieldChange struct {
	Column string
	Label  string
	Old    string
	New    string
}

// DiffResult is the outcome of comparing one edited row with its persisted counterpart.
// Patch is nil for new rows and for rows that did not change.
type DiffResult struct {
	Changed      bool
	Incomplete   bool
	Changes      []FieldChange
	Descriptions []string
	Patch        *models.DocumentPatch
}

// DiffDocument compares edited against original (nil for a new row) in schema order,
// attachment last. It has no side effects.
func DiffDocument(original *models.DocumentRecord, edited *models.DocumentRecord, kind *models.RecordKind, stamp AuditStamp) DiffResult {
	if edited.Incomplete(kind) {
		return DiffResult{Incomplete: true}
	}

	if original == nil {
		if edited.IsBlank(kind) {
			return DiffResult{}
		}
		return DiffResult{
			Changed:      true,
			Descriptions: []string{stamp.FormatAdded(kind.EntityLabel, edited.DisplayName())},
		}
	}

	var changes []FieldChange
	for _, f := range kind.Fields {
		oldValue := original.FieldValue(f.Column)
		newValue := edited.FieldValue(f.Column)
		if oldValue != newValue {
			changes = append(changes, FieldChange{Column: f.Column, Label: f.Label, Old: oldValue, New: newValue})
		}
	}
	if original.AttachmentKey != edited.AttachmentKey {
		changes = append(changes, FieldChange{
			Column: models.ColumnAttachmentKey,
			Label:  attachmentLabel,
			Old:    original.AttachmentKey,
			New:    edited.AttachmentKey,
		})
	}
	if len(changes) == 0 {
		return DiffResult{}
	}

	patch := models.NewDocumentPatch(original.ID)
	descriptions := make([]string, 0, len(changes))
	for _, c := range changes {
		patch.Set(c.Column, edited.ColumnValue(c.Column))
		descriptions = append(descriptions, stamp.FormatUpdated(c.Label, c.Old, c.New))
	}
	return DiffResult{
		Changed:      true,
		Changes:      changes,
		Descriptions: descriptions,
		Patch:        patch,
	}
}
