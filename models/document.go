package models

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const (
	ColumnName          = "name"
	ColumnDocType       = "doc_type"
	ColumnNumber        = "number"
	ColumnIssueDate     = "issue_date"
	ColumnExpiryDate    = "expiry_date"
	ColumnValue         = "value"
	ColumnIsMandatory   = "is_mandatory"
	ColumnNotes         = "notes"
	ColumnAttachmentKey = "attachment_key"
)

var documentColumns = map[string]bool{
	ColumnName:        true,
	ColumnDocType:     true,
	ColumnNumber:      true,
	ColumnIssueDate:   true,
	ColumnExpiryDate:  true,
	ColumnValue:       true,
	ColumnIsMandatory: true,
	ColumnNotes:       true,
}

func IsDocumentColumn(column string) bool {
	return documentColumns[column]
}

// DocumentRecord is a certificate-like row attached to an owner (employee, asset, site...).
// Dates are kept as YYYY-MM-DD strings; empty means unset.
type DocumentRecord struct {
	ID            string              `gorm:"type:char(36);primaryKey" json:"id"`
	BusinessId    string              `gorm:"size:64;index;not null" json:"business_id"`
	OwnerKey      string              `gorm:"size:64;index;not null" json:"owner_key"`
	Kind          string              `gorm:"size:40;not null" json:"kind"`
	Name          string              `gorm:"size:255" json:"name"`
	DocType       string              `gorm:"size:100" json:"doc_type"`
	Number        string              `gorm:"size:100" json:"number"`
	IssueDate     string              `gorm:"size:10" json:"issue_date"`
	ExpiryDate    string              `gorm:"size:10;index" json:"expiry_date"`
	Value         decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"value"`
	IsMandatory   bool                `gorm:"not null;default:false" json:"is_mandatory"`
	Notes         string              `gorm:"type:text" json:"notes"`
	AttachmentKey string              `gorm:"size:512" json:"attachment_key"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// FieldValue renders a column the way history lines show it.
func (d *DocumentRecord) FieldValue(column string) string {
	switch column {
	case ColumnName:
		return d.Name
	case ColumnDocType:
		return d.DocType
	case ColumnNumber:
		return d.Number
	case ColumnIssueDate:
		return d.IssueDate
	case ColumnExpiryDate:
		return d.ExpiryDate
	case ColumnValue:
		if !d.Value.Valid {
			return ""
		}
		return d.Value.Decimal.String()
	case ColumnIsMandatory:
		if d.IsMandatory {
			return "Yes"
		}
		return "No"
	case ColumnNotes:
		return d.Notes
	case ColumnAttachmentKey:
		return d.AttachmentKey
	}
	return ""
}

// ColumnValue is the typed value written for a column.
func (d *DocumentRecord) ColumnValue(column string) any {
	switch column {
	case ColumnValue:
		return d.Value
	case ColumnIsMandatory:
		return d.IsMandatory
	}
	return d.FieldValue(column)
}

// IsBlank reports a row with no content at all for its kind.
func (d *DocumentRecord) IsBlank(kind *RecordKind) bool {
	if d.AttachmentKey != "" {
		return false
	}
	for _, f := range kind.Fields {
		if f.Column == ColumnIsMandatory {
			if d.IsMandatory {
				return false
			}
			continue
		}
		if strings.TrimSpace(d.FieldValue(f.Column)) != "" {
			return false
		}
	}
	return true
}

// ExpiryValue is the kind's expiry-like field; empty for kinds without one.
func (d *DocumentRecord) ExpiryValue(kind *RecordKind) string {
	if !kind.HasExpiry() {
		return ""
	}
	return strings.TrimSpace(d.FieldValue(kind.ExpiryField))
}

// Incomplete is an attachment without its expiry date. Such rows are never persisted.
func (d *DocumentRecord) Incomplete(kind *RecordKind) bool {
	return kind.HasExpiry() && d.AttachmentKey != "" && d.ExpiryValue(kind) == ""
}

// DisplayName is used in added/removed history lines and skip warnings.
func (d *DocumentRecord) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	if d.Number != "" {
		return d.Number
	}
	return "Untitled"
}

// ValidateDates rejects dates that are not YYYY-MM-DD.
func (d *DocumentRecord) ValidateDates() error {
	for column, v := range map[string]string{ColumnIssueDate: d.IssueDate, ColumnExpiryDate: d.ExpiryDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, v); err != nil {
			return fmt.Errorf("%s must be YYYY-MM-DD", column)
		}
	}
	return nil
}

// DocumentPatch carries only the changed columns of one record.
type DocumentPatch struct {
	ID      string
	Columns map[string]any
}

func NewDocumentPatch(id string) *DocumentPatch {
	return &DocumentPatch{ID: id, Columns: map[string]any{}}
}

func (p *DocumentPatch) Set(column string, value any) {
	p.Columns[column] = value
}

func (p *DocumentPatch) Empty() bool {
	return p == nil || len(p.Columns) == 0
}

// Apply copies the patched columns onto an in-memory record.
func (p *DocumentPatch) Apply(d *DocumentRecord) {
	for column, v := range p.Columns {
		switch column {
		case ColumnName:
			d.Name, _ = v.(string)
		case ColumnDocType:
			d.DocType, _ = v.(string)
		case ColumnNumber:
			d.Number, _ = v.(string)
		case ColumnIssueDate:
			d.IssueDate, _ = v.(string)
		case ColumnExpiryDate:
			d.ExpiryDate, _ = v.(string)
		case ColumnValue:
			d.Value, _ = v.(decimal.NullDecimal)
		case ColumnIsMandatory:
			d.IsMandatory, _ = v.(bool)
		case ColumnNotes:
			d.Notes, _ = v.(string)
		case ColumnAttachmentKey:
			d.AttachmentKey, _ = v.(string)
		}
	}
}

// AttachmentFile is a local payload not yet in the blob store.
type AttachmentFile struct {
	ObjectKey   string
	FileName    string
	ContentType string
	Data        []byte
}

// NewAttachmentObjectKey proposes a storage key: <business>/documents/<owner>/<uuid><ext>.
func NewAttachmentObjectKey(businessId, ownerKey, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return path.Join(sanitizeSegment(businessId), "documents", sanitizeSegment(ownerKey), uuid.NewString()+ext)
}

// ThumbnailKey is where the preview of an image attachment lives.
func ThumbnailKey(objectKey string) string {
	return path.Join("thumbnails", strings.TrimSuffix(objectKey, path.Ext(objectKey))+".jpg")
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
