package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// OwnerDocumentSource is the batch query behind the per-request document loader.
type OwnerDocumentSource interface {
	ListByOwners(ctx context.Context, ownerKeys []string) ([]*models.DocumentRecord, error)
}

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	ownerDocumentLoader *dataloader.Loader[string, []*models.DocumentRecord]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(source OwnerDocumentSource) *Loaders {
	ownerDocumentReader := &documentReader{source: source}

	return &Loaders{
		ownerDocumentLoader: dataloader.NewBatchedLoader(ownerDocumentReader.GetDocuments, dataloader.WithWait[string, []*models.DocumentRecord](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(models.NewDocumentStore(config.GetDB()))
		ctx := WithLoaders(c.Request.Context(), loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
