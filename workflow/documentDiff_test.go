package workflow

import (
	"testing"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/shopspring/decimal"
)

func certificateKind(t *testing.T) *models.RecordKind {
	t.Helper()
	kind, err := models.GetRecordKind("certificate")
	if err != nil {
		t.Fatalf("certificate kind: %v", err)
	}
	return kind
}

func TestDiffDocument_NewRows(t *testing.T) {
	kind := certificateKind(t)
	stamp := NewAuditStamp("Ann", fixedNow, nil)

	tests := []struct {
		name        string
		edited      *models.DocumentRecord
		wantChanged bool
		wantLines   []string
	}{
		{
			name:   "blank row is ignored",
			edited: certificate("", "", "", ""),
		},
		{
			name:        "named row is added",
			edited:      certificate("", "CSCS", "2026-01-01", ""),
			wantChanged: true,
			wantLines:   []string{"Ann added certificate \"CSCS\" at 15/01/2024, 09:30:00\n"},
		},
		{
			name:        "unnamed row falls back to number",
			edited:      &models.DocumentRecord{Kind: "certificate", Number: "A-77"},
			wantChanged: true,
			wantLines:   []string{"Ann added certificate \"A-77\" at 15/01/2024, 09:30:00\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffDocument(nil, tt.edited, kind, stamp)
			if got.Changed != tt.wantChanged {
				t.Fatalf("changed = %v, want %v", got.Changed, tt.wantChanged)
			}
			if got.Patch != nil {
				t.Fatalf("new rows carry no patch, got %+v", got.Patch)
			}
			if len(got.Descriptions) != len(tt.wantLines) {
				t.Fatalf("descriptions = %q, want %q", got.Descriptions, tt.wantLines)
			}
			for i := range tt.wantLines {
				if got.Descriptions[i] != tt.wantLines[i] {
					t.Fatalf("line %d = %q, want %q", i, got.Descriptions[i], tt.wantLines[i])
				}
			}
		})
	}
}

func TestDiffDocument_UpdatedFieldsInSchemaOrderAttachmentLast(t *testing.T) {
	kind := certificateKind(t)
	stamp := NewAuditStamp("Ann", fixedNow, nil)

	original := certificate("r1", "CSCS", "2025-01-01", "old.pdf")
	original.Notes = "keep"
	edited := certificate("r1", "CSCS Gold", "2026-01-01", "new.pdf")
	edited.Notes = "keep"

	got := DiffDocument(original, edited, kind, stamp)
	if !got.Changed {
		t.Fatalf("expected a change")
	}
	want := []string{
		"Ann updated name from CSCS to CSCS Gold at 15/01/2024, 09:30:00\n",
		"Ann updated expiry date from 2025-01-01 to 2026-01-01 at 15/01/2024, 09:30:00\n",
		"Ann updated attachment from old.pdf to new.pdf at 15/01/2024, 09:30:00\n",
	}
	if len(got.Descriptions) != len(want) {
		t.Fatalf("descriptions = %q, want %q", got.Descriptions, want)
	}
	for i := range want {
		if got.Descriptions[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got.Descriptions[i], want[i])
		}
	}

	if got.Patch == nil || got.Patch.ID != "r1" {
		t.Fatalf("patch = %+v, want id r1", got.Patch)
	}
	if len(got.Patch.Columns) != 3 {
		t.Fatalf("patch columns = %v, want only the 3 changed ones", got.Patch.Columns)
	}
	if _, ok := got.Patch.Columns[models.ColumnNotes]; ok {
		t.Fatalf("unchanged notes must not be in the patch")
	}
	if got.Patch.Columns[models.ColumnAttachmentKey] != "new.pdf" {
		t.Fatalf("attachment column = %v", got.Patch.Columns[models.ColumnAttachmentKey])
	}
}

func TestDiffDocument_UnchangedRow(t *testing.T) {
	kind := certificateKind(t)
	original := certificate("r1", "CSCS", "2025-01-01", "a.pdf")
	edited := *original

	got := DiffDocument(original, &edited, kind, NewAuditStamp("", fixedNow, nil))
	if got.Changed || got.Patch != nil || len(got.Descriptions) != 0 {
		t.Fatalf("expected no change, got %+v", got)
	}
}

func TestDiffDocument_IncompleteOverridesEverything(t *testing.T) {
	kind := certificateKind(t)
	original := certificate("r1", "CSCS", "2025-01-01", "")
	edited := certificate("r1", "CSCS Gold", "", "a.pdf")

	got := DiffDocument(original, edited, kind, NewAuditStamp("", fixedNow, nil))
	if !got.Incomplete || got.Changed || got.Patch != nil {
		t.Fatalf("expected incomplete only, got %+v", got)
	}

	got = DiffDocument(nil, certificate("", "New", "", "a.pdf"), kind, NewAuditStamp("", fixedNow, nil))
	if !got.Incomplete {
		t.Fatalf("new row with attachment and no expiry must be incomplete")
	}
}

func TestDiffDocument_TypedColumns(t *testing.T) {
	kind, err := models.GetRecordKind("compliance_document")
	if err != nil {
		t.Fatalf("kind: %v", err)
	}
	asset, err := models.GetRecordKind("asset")
	if err != nil {
		t.Fatalf("kind: %v", err)
	}
	stamp := NewAuditStamp("Ann", fixedNow, nil)

	original := &models.DocumentRecord{ID: "c1", Kind: "compliance_document", Name: "Insurance"}
	edited := &models.DocumentRecord{ID: "c1", Kind: "compliance_document", Name: "Insurance", IsMandatory: true}
	got := DiffDocument(original, edited, kind, stamp)
	if len(got.Changes) != 1 || got.Changes[0].Old != "No" || got.Changes[0].New != "Yes" {
		t.Fatalf("mandatory change = %+v", got.Changes)
	}
	if got.Patch.Columns[models.ColumnIsMandatory] != true {
		t.Fatalf("patch must carry a bool, got %#v", got.Patch.Columns[models.ColumnIsMandatory])
	}

	original = &models.DocumentRecord{ID: "a1", Kind: "asset", Name: "Van"}
	edited = &models.DocumentRecord{ID: "a1", Kind: "asset", Name: "Van", Value: decimal.NewNullDecimal(decimal.RequireFromString("1250.50"))}
	got = DiffDocument(original, edited, asset, stamp)
	if len(got.Changes) != 1 || got.Changes[0].Old != "" || got.Changes[0].New != "1250.5" {
		t.Fatalf("value change = %+v", got.Changes)
	}
}
