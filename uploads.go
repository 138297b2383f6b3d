package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

type uploadSignRequest struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	OwnerKey string `json:"ownerKey"`
}

type uploadSignResponse struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ObjectKey string            `json:"objectKey"`
	AccessURL string            `json:"accessUrl"`
	ExpiresAt string            `json:"expiresAt"`
}

// signUploadHandler hands out a direct-to-bucket upload URL. The returned objectKey is
// later sent back as a row's stagedKey in the reconcile payload.
func (api *documentAPI) signUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := requestIDFromHeaders(c)
		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())

		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.FileName == "" || req.MimeType == "" || req.Size <= 0 || strings.TrimSpace(req.OwnerKey) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fileName, mimeType, size and ownerKey are required"})
			return
		}
		if req.Size > models.MaxAttachmentSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		if !utils.IsAllowedMimeType(req.MimeType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
			return
		}

		fileName := req.FileName
		if filepath.Ext(fileName) == "" {
			ext := extensionFromMimeType(req.MimeType)
			if ext == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file extension is required"})
				return
			}
			fileName += ext
		}
		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusBadRequest, gin.H{"error": "storage provider not supported"})
			return
		}

		objectKey := models.NewAttachmentObjectKey(businessId, req.OwnerKey, fileName)
		signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, signedUploadExpiry)
		if err != nil {
			logUploadError(api.logger, err, utils.GetStorageProvider(), requestID)
			message := "failed to sign upload"
			if !strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
				message = fmt.Sprintf("failed to sign upload: %v", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": message})
			return
		}

		api.logger.WithFields(logrus.Fields{
			"tenant_id":  businessId,
			"owner_key":  req.OwnerKey,
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, gin.H{
			"data": uploadSignResponse{
				UploadURL: signed.UploadURL,
				Method:    signed.Method,
				Headers:   signed.Headers,
				ObjectKey: signed.ObjectKey,
				AccessURL: signed.AccessURL,
				ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
			},
		})
	}
}

// uploadObjectHandler redirects to a short-lived signed URL when the bucket can sign one and
// otherwise streams the attachment through the API. Keys outside the caller's business are refused.
func (api *documentAPI) uploadObjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		objectKey := strings.TrimSpace(c.Query("key"))
		if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
			return
		}
		businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
		if businessId == "" || !strings.HasPrefix(strings.TrimPrefix(objectKey, "thumbnails/"), businessId+"/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}

		if api.signDownload != nil {
			if url, ok := api.signedObjectURL(c, objectKey); ok {
				c.Redirect(http.StatusFound, url)
				return
			}
		}

		reader, contentType, err := api.attachments.Open(c.Request.Context(), objectKey)
		if err != nil {
			logUploadError(api.logger, err, utils.GetStorageProvider(), requestIDFromHeaders(c))
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		defer reader.Close()

		if contentType != "" {
			c.Writer.Header().Set("Content-Type", contentType)
		}
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, reader)
	}
}

// signedObjectURL signs a download for an existing object; any failure falls back to streaming.
func (api *documentAPI) signedObjectURL(c *gin.Context, objectKey string) (string, bool) {
	ctx := c.Request.Context()
	if exists, err := api.attachments.Exists(ctx, objectKey); err != nil || !exists {
		return "", false
	}
	url, err := api.signDownload(ctx, objectKey, signedDownloadExpiry)
	if err != nil {
		logUploadError(api.logger, err, utils.GetStorageProvider(), requestIDFromHeaders(c))
		return "", false
	}
	return url, true
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.ms-excel":
		return ".xls"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	default:
		return ""
	}
}

func logUploadError(logger *logrus.Logger, err error, provider string, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"provider":   provider,
		"request_id": requestID,
	}).Error("[upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Correlation-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}
