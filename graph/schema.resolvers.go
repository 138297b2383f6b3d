package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/fleet_backend/appctx"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/middlewares"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/mmdatafocus/fleet_backend/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SaveOwner is the resolver for the saveOwner field.
func (r *mutationResolver) SaveOwner(ctx context.Context, input OwnerInput) (*models.DocumentOwner, error) {
	owner, err := r.Owners.SaveOwner(ctx, input)
	if err != nil {
		if gqlErr, ok := validationInput(ctx, err); ok {
			return nil, gqlErr
		}
		config.LogError(r.Logger, "schema.resolvers.go", "SaveOwner", "SaveOwner", input, err)
		return nil, err
	}
	return owner, nil
}

// ReconcileDocuments is the resolver for the reconcileDocuments field.
func (r *mutationResolver) ReconcileDocuments(ctx context.Context, input ReconcileInput) (*ReconcilePayload, error) {
	ctx, span := r.Tracer.Start(ctx, "graph.reconcileDocuments")
	defer span.End()

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	ownerKey := strings.TrimSpace(input.Owner.OwnerKey)
	if ownerKey == "" {
		return nil, badInput(ctx, "ownerKey", "owner key is required")
	}
	input.Owner.OwnerKey = ownerKey
	span.SetAttributes(attribute.String("owner_key", ownerKey), attribute.Int("rows", len(input.Rows)))

	edited := make([]workflow.Row, 0, len(input.Rows))
	pending := map[string]workflow.PendingAttachment{}
	for _, row := range input.Rows {
		if row.File != nil {
			p, err := pendingAttachment(businessId, ownerKey, row.RowKey, row.File)
			if err != nil {
				return nil, badInput(ctx, "files", "%v", err)
			}
			pending[row.RowKey] = p
		}
		edited = append(edited, workflow.Row{
			RowKey:    row.RowKey,
			Record:    row.Record.toRecord(ownerKey),
			StagedKey: row.StagedKey,
		})
	}

	originals, err := r.Documents.ListByOwner(ctx, ownerKey)
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "ReconcileDocuments", "ListByOwner", ownerKey, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.New("failed to load documents")
	}

	result, err := r.Reconciler.Reconcile(ctx, workflow.ReconcileInput{
		Owner:    input.Owner,
		Actor:    appctx.Actor(ctx),
		Edited:   edited,
		Original: originals,
		Pending:  pending,
	})
	if err != nil {
		if v, ok := workflow.AsValidationError(err); ok {
			return nil, badInput(ctx, v.Field, "%s", v.Error())
		}
		config.LogError(r.Logger, "schema.resolvers.go", "ReconcileDocuments", "Reconcile", ownerKey, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.New(messagePartialSave)
	}
	return reconcilePayloadFor(result), nil
}

// RecordKinds is the resolver for the recordKinds field.
func (r *queryResolver) RecordKinds(ctx context.Context) ([]*models.RecordKind, error) {
	return models.ListRecordKinds()
}

// Owners is the resolver for the owners field.
func (r *queryResolver) Owners(ctx context.Context, ownerType *string) ([]*OwnerWithDocuments, error) {
	owners, err := r.Resolver.Owners.ListOwners(ctx, deref(ownerType))
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "Owners", "ListOwners", ownerType, err)
		return nil, errors.New("failed to list owners")
	}

	keys := make([]string, len(owners))
	for i, owner := range owners {
		keys[i] = owner.ID
	}
	documents, err := middlewares.GetOwnersDocuments(ctx, keys)
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "Owners", "GetOwnersDocuments", keys, err)
		return nil, errors.New("failed to list documents")
	}
	results := make([]*OwnerWithDocuments, len(owners))
	for i, owner := range owners {
		results[i] = &OwnerWithDocuments{DocumentOwner: owner, Documents: documents[i]}
	}
	return results, nil
}

// Owner is the resolver for the owner field.
func (r *queryResolver) Owner(ctx context.Context, ownerKey string) (*OwnerWithDocuments, error) {
	owner, err := r.Resolver.Owners.GetOwner(ctx, ownerKey)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil
		}
		config.LogError(r.Logger, "schema.resolvers.go", "Owner", "GetOwner", ownerKey, err)
		return nil, errors.New("failed to load owner")
	}
	documents, err := middlewares.GetOwnerDocuments(ctx, ownerKey)
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "Owner", "GetOwnerDocuments", ownerKey, err)
		return nil, errors.New("failed to list documents")
	}
	return &OwnerWithDocuments{DocumentOwner: owner, Documents: documents}, nil
}

// OwnerDocuments is the resolver for the ownerDocuments field.
func (r *queryResolver) OwnerDocuments(ctx context.Context, ownerKey string) ([]*models.DocumentRecord, error) {
	docs, err := r.Documents.ListByOwner(ctx, ownerKey)
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "OwnerDocuments", "ListByOwner", ownerKey, err)
		return nil, errors.New("failed to list documents")
	}
	return docs, nil
}

// Histories is the resolver for the histories field.
func (r *queryResolver) Histories(ctx context.Context, first *int, after *string, filter *HistoryFilter) (*models.HistoriesConnection, error) {
	limit := 0
	if first != nil {
		if *first < 0 {
			return nil, badInput(ctx, "first", "first must not be negative")
		}
		limit = *first
	}
	f := filter.toModel()
	f.EntityType = strings.TrimSpace(f.EntityType)
	f.EntityId = strings.TrimSpace(f.EntityId)
	f.Action = strings.ToUpper(strings.TrimSpace(f.Action))
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, badInput(ctx, "filter", "from must not be after to")
	}

	conn, err := r.Resolver.Histories.PaginateHistory(ctx, limit, after, f)
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "Histories", "PaginateHistory", f, err)
		return nil, errors.New("failed to list history")
	}
	return conn, nil
}

// ExpiringDocuments is the resolver for the expiringDocuments field.
func (r *queryResolver) ExpiringDocuments(ctx context.Context, days *int) ([]*models.DocumentRecord, error) {
	n := DefaultExpiringDays
	if days != nil {
		if *days < 0 {
			return nil, badInput(ctx, "days", "days must be a non-negative integer")
		}
		n = *days
	}
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	docs, err := r.Expiring(ctx, n, time.Now().In(loc))
	if err != nil {
		config.LogError(r.Logger, "schema.resolvers.go", "ExpiringDocuments", "ListExpiringDocuments", n, err)
		return nil, errors.New("failed to list expiring documents")
	}
	return docs, nil
}
