package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/graph"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	signedUploadExpiry   = 15 * time.Minute
	signedDownloadExpiry = 5 * time.Minute
)

// documentAPI holds the collaborators behind the /api routes. Owners, documents and
// history go through GraphQL; file transfer and workbook exports stay REST.
type documentAPI struct {
	graph        http.Handler
	attachments  graph.AttachmentService
	histories    graph.HistoryService
	expiring     graph.ExpiringFunc
	signDownload func(ctx context.Context, objectKey string, expires time.Duration) (string, error)
	location     *time.Location
	logger       *logrus.Logger
}

func newDocumentAPI(owners graph.OwnerService, documents graph.DocumentService, attachments graph.AttachmentService, histories graph.HistoryService, logger *logrus.Logger) *documentAPI {
	loc := config.AuditTimezone()
	expiring := func(ctx context.Context, days int, today time.Time) ([]*models.DocumentRecord, error) {
		return models.ListExpiringDocuments(ctx, config.GetDB(), days, today)
	}
	api := &documentAPI{
		graph:       newGraphqlServer(graph.NewResolver(owners, documents, attachments, histories, expiring, loc, logger), logger),
		attachments: attachments,
		histories:   histories,
		expiring:    expiring,
		location:    loc,
		logger:      logger,
	}
	if utils.GetStorageProvider() == utils.StorageProviderGCS {
		api.signDownload = utils.SignDownload
	}
	return api
}

func (api *documentAPI) registerRoutes(r gin.IRouter) {
	r.POST("/query", api.graphqlHandler())
	r.GET("/histories/export", api.exportHistoriesHandler())
	r.GET("/documents/expiring/export", api.exportExpiringHandler())
	r.POST("/uploads/sign", api.signUploadHandler())
	r.GET("/uploads/object", api.uploadObjectHandler())
}
