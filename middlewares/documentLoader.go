package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/fleet_backend/models"
)

type documentReader struct {
	source OwnerDocumentSource
}

func (r *documentReader) GetDocuments(ctx context.Context, ownerKeys []string) []*dataloader.Result[[]*models.DocumentRecord] {
	results, err := r.source.ListByOwners(ctx, ownerKeys)
	if err != nil {
		return handleError[[]*models.DocumentRecord](len(ownerKeys), err)
	}

	// key => owner key
	// value => that owner's document rows
	resultMap := make(map[string][]*models.DocumentRecord)
	for _, result := range results {
		resultMap[result.OwnerKey] = append(resultMap[result.OwnerKey], result)
	}
	loaderResults := make([]*dataloader.Result[[]*models.DocumentRecord], 0, len(ownerKeys))
	for _, key := range ownerKeys {
		documents := resultMap[key]
		if documents == nil {
			documents = []*models.DocumentRecord{}
		}
		loaderResults = append(loaderResults, &dataloader.Result[[]*models.DocumentRecord]{Data: documents})
	}
	return loaderResults
}

func GetOwnerDocuments(ctx context.Context, ownerKey string) ([]*models.DocumentRecord, error) {
	loaders := For(ctx)
	return loaders.ownerDocumentLoader.Load(ctx, ownerKey)()
}

// GetOwnersDocuments loads several owners in one batch; results follow ownerKeys order.
func GetOwnersDocuments(ctx context.Context, ownerKeys []string) ([][]*models.DocumentRecord, error) {
	loaders := For(ctx)
	documents, errs := loaders.ownerDocumentLoader.LoadMany(ctx, ownerKeys)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return documents, nil
}
