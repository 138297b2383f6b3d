package graph

import (
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/workflow"
)

type OwnerInput = models.OwnerHeader

type HistoryFilter struct {
	EntityType *string    `json:"entityType"`
	EntityId   *string    `json:"entityId"`
	Action     *string    `json:"action"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
}

func (f *HistoryFilter) toModel() models.HistoryFilter {
	if f == nil {
		return models.HistoryFilter{}
	}
	return models.HistoryFilter{
		EntityType: deref(f.EntityType),
		EntityId:   deref(f.EntityId),
		Action:     deref(f.Action),
		From:       f.From,
		To:         f.To,
	}
}

type RecordInput struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	Name          string  `json:"name"`
	DocType       string  `json:"doc_type"`
	Number        string  `json:"number"`
	IssueDate     string  `json:"issue_date"`
	ExpiryDate    string  `json:"expiry_date"`
	Value         Decimal `json:"value"`
	IsMandatory   bool    `json:"is_mandatory"`
	Notes         string  `json:"notes"`
	AttachmentKey string  `json:"attachment_key"`
}

func (in RecordInput) toRecord(ownerKey string) models.DocumentRecord {
	return models.DocumentRecord{
		ID:            in.ID,
		OwnerKey:      ownerKey,
		Kind:          in.Kind,
		Name:          in.Name,
		DocType:       in.DocType,
		Number:        in.Number,
		IssueDate:     in.IssueDate,
		ExpiryDate:    in.ExpiryDate,
		Value:         in.Value.NullDecimal,
		IsMandatory:   in.IsMandatory,
		Notes:         in.Notes,
		AttachmentKey: in.AttachmentKey,
	}
}

type ReconcileRowInput struct {
	RowKey    string          `json:"rowKey"`
	Record    RecordInput     `json:"record"`
	StagedKey string          `json:"stagedKey"`
	File      *graphql.Upload `json:"-"`
}

type ReconcileInput struct {
	Owner OwnerInput          `json:"owner"`
	Rows  []ReconcileRowInput `json:"rows"`
}

type ReconcilePayload struct {
	*workflow.ReconcileResult
	Message string  `json:"message"`
	Warning *string `json:"warning"`
}

// OwnerWithDocuments is a DocumentOwner as the API shows it, with its document rows.
type OwnerWithDocuments struct {
	*models.DocumentOwner
	Documents []*models.DocumentRecord `json:"documents"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
