package reports

import (
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
)

const ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ExpiringDocumentHeadings = []string{"Owner", "Kind", "Name", "Number", "Expiry Date", "Days Left", "Attachment"}

type ExpiringDocumentRow struct {
	Document *models.DocumentRecord
	DaysLeft int
}

func (r ExpiringDocumentRow) GetCellValues() []interface{} {
	attachment := "No"
	if r.Document.AttachmentKey != "" {
		attachment = "Yes"
	}
	return []interface{}{
		r.Document.OwnerKey,
		r.Document.Kind,
		r.Document.DisplayName(),
		r.Document.Number,
		r.Document.ExpiryDate,
		r.DaysLeft,
		attachment,
	}
}

// ExpiringDocumentRows computes days left against today; already expired rows are negative.
func ExpiringDocumentRows(docs []*models.DocumentRecord, today time.Time) []ExcelExporter {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	rows := make([]ExcelExporter, 0, len(docs))
	for _, d := range docs {
		expiry, err := time.Parse(models.DateLayout, d.ExpiryDate)
		if err != nil {
			continue
		}
		rows = append(rows, ExpiringDocumentRow{Document: d, DaysLeft: int(expiry.Sub(day).Hours() / 24)})
	}
	return rows
}

var HistoryHeadings = []string{"Time", "Entity Type", "Entity", "Action", "User", "Details"}

type HistoryRow struct {
	History  *models.History
	Location *time.Location
}

func (r HistoryRow) GetCellValues() []interface{} {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return []interface{}{
		r.History.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
		r.History.EntityType,
		r.History.EntityId,
		r.History.Action,
		r.History.UserName,
		r.History.Details,
	}
}

func HistoryRows(histories []*models.History, loc *time.Location) []ExcelExporter {
	rows := make([]ExcelExporter, 0, len(histories))
	for _, h := range histories {
		rows = append(rows, HistoryRow{History: h, Location: loc})
	}
	return rows
}
