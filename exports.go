package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/graph"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/models/reports"
)

func parseHistoryFilter(c *gin.Context) (models.HistoryFilter, error) {
	filter := models.HistoryFilter{
		EntityType: strings.TrimSpace(c.Query("entityType")),
		EntityId:   strings.TrimSpace(c.Query("entityId")),
		Action:     strings.ToUpper(strings.TrimSpace(c.Query("action"))),
	}
	for name, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("%s must be an RFC3339 timestamp", name)
		}
		*target = &t
	}
	return filter, nil
}

func parseExpiringDays(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return graph.DefaultExpiringDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, errors.New("days must be a non-negative integer")
	}
	return days, nil
}

func (api *documentAPI) exportHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := parseHistoryFilter(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		histories, err := api.histories.GetHistories(c.Request.Context(), filter)
		if err != nil {
			config.LogError(api.logger, "exports.go", "exportHistoriesHandler", "GetHistories", filter, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export history"})
			return
		}
		api.writeWorkbook(c, "history.xlsx", "History", reports.HistoryHeadings, reports.HistoryRows(histories, api.location))
	}
}

func (api *documentAPI) exportExpiringHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := parseExpiringDays(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		today := time.Now().In(api.location)
		docs, err := api.expiring(c.Request.Context(), days, today)
		if err != nil {
			config.LogError(api.logger, "exports.go", "exportExpiringHandler", "ListExpiringDocuments", days, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export expiring documents"})
			return
		}
		api.writeWorkbook(c, "expiring-documents.xlsx", "Expiring", reports.ExpiringDocumentHeadings, reports.ExpiringDocumentRows(docs, today))
	}
}

func (api *documentAPI) writeWorkbook(c *gin.Context, filename, sheet string, headings []string, rows []reports.ExcelExporter) {
	c.Header("Content-Type", reports.ExcelContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := reports.WriteExcel(c.Writer, sheet, headings, rows); err != nil {
		config.LogError(api.logger, "exports.go", "writeWorkbook", "WriteExcel", filename, err)
		_ = c.Error(err)
	}
}
