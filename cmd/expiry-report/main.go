package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/mmdatafocus/fleet_backend/config"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/models/reports"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	days := flag.Int("days", 30, "Include documents expiring within this many days (expired ones are always included)")
	out := flag.String("out", "expiring-documents.xlsx", "Output xlsx path")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}
	if *days < 0 {
		fmt.Fprintln(os.Stderr, "--days must not be negative")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx := utils.SetBusinessIdInContext(context.Background(), strings.TrimSpace(*businessID))
	ctx = utils.SetUsernameInContext(ctx, "expiry-report")
	today := time.Now().In(config.AuditTimezone())

	docs, err := models.ListExpiringDocuments(ctx, db, *days, today)
	if err != nil {
		config.LogError(logger, "expiry-report", "main", "ListExpiringDocuments", *businessID, err)
		os.Exit(1)
	}
	rows := reports.ExpiringDocumentRows(docs, today)
	if err := reports.SaveExcel(*out, "Expiring", reports.ExpiringDocumentHeadings, rows); err != nil {
		config.LogError(logger, "expiry-report", "main", "SaveExcel", *out, err)
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{
		"business_id": *businessID,
		"days":        *days,
		"rows":        len(rows),
		"out":         *out,
	}).Info("expiry report written")
}
