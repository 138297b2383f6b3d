package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDocumentRecord_Completeness(t *testing.T) {
	cert, err := GetRecordKind("certificate")
	if err != nil {
		t.Fatalf("kind: %v", err)
	}
	tests := []struct {
		name           string
		rec            DocumentRecord
		wantBlank      bool
		wantIncomplete bool
	}{
		{name: "empty", rec: DocumentRecord{}, wantBlank: true},
		{name: "whitespace only", rec: DocumentRecord{Name: "  "}, wantBlank: true},
		{name: "named", rec: DocumentRecord{Name: "CSCS"}},
		{name: "attachment without expiry", rec: DocumentRecord{AttachmentKey: "k.pdf"}, wantIncomplete: true},
		{name: "attachment with expiry", rec: DocumentRecord{AttachmentKey: "k.pdf", ExpiryDate: "2026-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.IsBlank(cert); got != tt.wantBlank {
				t.Fatalf("IsBlank = %v", got)
			}
			if got := tt.rec.Incomplete(cert); got != tt.wantIncomplete {
				t.Fatalf("Incomplete = %v", got)
			}
		})
	}
}

func TestDocumentRecord_ValidateDates(t *testing.T) {
	if err := (&DocumentRecord{IssueDate: "2024-02-29", ExpiryDate: ""}).ValidateDates(); err != nil {
		t.Fatalf("valid dates rejected: %v", err)
	}
	err := (&DocumentRecord{ExpiryDate: "31/12/2024"}).ValidateDates()
	if err == nil || !strings.Contains(err.Error(), ColumnExpiryDate) {
		t.Fatalf("err = %v", err)
	}
}

func TestDocumentPatch_Apply(t *testing.T) {
	rec := DocumentRecord{Name: "Old", Notes: "n"}
	patch := NewDocumentPatch("d1")
	if !patch.Empty() {
		t.Fatalf("new patch should be empty")
	}
	patch.Set(ColumnName, "New")
	patch.Set(ColumnIsMandatory, true)
	patch.Set(ColumnValue, decimal.NewNullDecimal(decimal.RequireFromString("12.50")))
	patch.Apply(&rec)

	if rec.Name != "New" || !rec.IsMandatory || rec.Notes != "n" {
		t.Fatalf("rec = %+v", rec)
	}
	if !rec.Value.Valid || !rec.Value.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("value = %v", rec.Value)
	}
}

func TestNewAttachmentObjectKey(t *testing.T) {
	key := NewAttachmentObjectKey("biz-1", "emp/1", "Scan Copy.PDF")
	if !strings.HasPrefix(key, "biz-1/documents/emp_1/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("key = %q", key)
	}
	if other := NewAttachmentObjectKey("biz-1", "emp/1", "Scan Copy.PDF"); other == key {
		t.Fatalf("keys must be unique per call")
	}
	if got := ThumbnailKey("biz-1/documents/emp-1/a.png"); got != "thumbnails/biz-1/documents/emp-1/a.jpg" {
		t.Fatalf("thumbnail key = %q", got)
	}
}
