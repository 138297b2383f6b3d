package graph

import (
	"context"
	"io"
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// This file will not be regenerated automatically.
//
// It serves as dependency injection for the app.

type OwnerService interface {
	workflow.OwnerPackStore
	SaveOwner(ctx context.Context, header models.OwnerHeader) (*models.DocumentOwner, error)
	GetOwner(ctx context.Context, ownerKey string) (*models.DocumentOwner, error)
	ListOwners(ctx context.Context, ownerType string) ([]*models.DocumentOwner, error)
}

type DocumentService interface {
	workflow.DocumentRepository
	ListByOwner(ctx context.Context, ownerKey string) ([]*models.DocumentRecord, error)
}

type AttachmentService interface {
	workflow.AttachmentStore
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

type HistoryService interface {
	workflow.AuditLog
	GetHistories(ctx context.Context, filter models.HistoryFilter) ([]*models.History, error)
	PaginateHistory(ctx context.Context, limit int, after *string, filter models.HistoryFilter) (*models.HistoriesConnection, error)
}

// ExpiringFunc lists documents whose expiry falls within days of today.
type ExpiringFunc func(ctx context.Context, days int, today time.Time) ([]*models.DocumentRecord, error)

type Resolver struct {
	Tracer      trace.Tracer
	Owners      OwnerService
	Documents   DocumentService
	Attachments AttachmentService
	Histories   HistoryService
	Reconciler  *workflow.Reconciler
	Expiring    ExpiringFunc
	Location    *time.Location
	Logger      *logrus.Logger
}

func NewResolver(owners OwnerService, documents DocumentService, attachments AttachmentService, histories HistoryService, expiring ExpiringFunc, loc *time.Location, logger *logrus.Logger) *Resolver {
	audit := workflow.NewAuditPublisher(histories, logger)
	return &Resolver{
		Tracer:      otel.Tracer("github.com/mmdatafocus/fleet_backend/graph"),
		Owners:      owners,
		Documents:   documents,
		Attachments: attachments,
		Histories:   histories,
		Reconciler:  workflow.NewReconciler(documents, attachments, audit, owners, logger, loc),
		Expiring:    expiring,
		Location:    loc,
		Logger:      logger,
	}
}

type QueryResolver interface {
	RecordKinds(ctx context.Context) ([]*models.RecordKind, error)
	Owners(ctx context.Context, ownerType *string) ([]*OwnerWithDocuments, error)
	Owner(ctx context.Context, ownerKey string) (*OwnerWithDocuments, error)
	OwnerDocuments(ctx context.Context, ownerKey string) ([]*models.DocumentRecord, error)
	Histories(ctx context.Context, first *int, after *string, filter *HistoryFilter) (*models.HistoriesConnection, error)
	ExpiringDocuments(ctx context.Context, days *int) ([]*models.DocumentRecord, error)
}

type MutationResolver interface {
	SaveOwner(ctx context.Context, input OwnerInput) (*models.DocumentOwner, error)
	ReconcileDocuments(ctx context.Context, input ReconcileInput) (*ReconcilePayload, error)
}

// Query returns QueryResolver implementation.
func (r *Resolver) Query() QueryResolver { return &queryResolver{r} }

// Mutation returns MutationResolver implementation.
func (r *Resolver) Mutation() MutationResolver { return &mutationResolver{r} }

type queryResolver struct{ *Resolver }
type mutationResolver struct{ *Resolver }
