package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/xuri/excelize/v2"
)

func TestExpiringDocumentRows_DaysLeft(t *testing.T) {
	today := time.Date(2024, time.March, 10, 17, 45, 0, 0, time.UTC)
	docs := []*models.DocumentRecord{
		{OwnerKey: "emp-1", Kind: "certificate", Name: "CSCS", ExpiryDate: "2024-03-20", AttachmentKey: "k/a.pdf"},
		{OwnerKey: "emp-2", Kind: "certificate", Name: "IPAF", ExpiryDate: "2024-03-08"},
		{OwnerKey: "emp-3", Kind: "certificate", Name: "Broken", ExpiryDate: "soon"},
	}

	rows := ExpiringDocumentRows(docs, today)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want unparseable dates dropped", len(rows))
	}
	tests := []struct {
		row        int
		daysLeft   int
		attachment string
	}{
		{row: 0, daysLeft: 10, attachment: "Yes"},
		{row: 1, daysLeft: -2, attachment: "No"},
	}
	for _, tt := range tests {
		values := rows[tt.row].GetCellValues()
		if values[5] != tt.daysLeft || values[6] != tt.attachment {
			t.Fatalf("row %d = %v, want %d days and attachment %s", tt.row, values, tt.daysLeft, tt.attachment)
		}
	}
}

func TestWriteExcel_RoundTripsHeaderAndRows(t *testing.T) {
	histories := []*models.History{
		{EntityType: "employee", EntityId: "emp-1", Action: "UPDATE", UserName: "Ann", Details: "Ann updated name from A to B at 15/01/2024, 09:30:00\n", CreatedAt: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	if err := WriteExcel(&buf, "History", HistoryHeadings, HistoryRows(histories, nil)); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("History")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "Time" || rows[1][0] != "2024-01-15 09:30:00" || rows[1][4] != "Ann" {
		t.Fatalf("rows = %v", rows)
	}
}
