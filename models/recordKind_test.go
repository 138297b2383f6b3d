package models

import (
	"strings"
	"testing"
)

func TestBundledRecordKinds(t *testing.T) {
	kinds, err := ListRecordKinds()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(kinds) == 0 {
		t.Fatalf("no kinds loaded")
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1].Name >= kinds[i].Name {
			t.Fatalf("kinds not sorted: %s before %s", kinds[i-1].Name, kinds[i].Name)
		}
	}

	cert, err := GetRecordKind("certificate")
	if err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if !cert.HasExpiry() || cert.ExpiryField != ColumnExpiryDate {
		t.Fatalf("certificate expiry field = %q", cert.ExpiryField)
	}
	if cert.Fields[0].Column != ColumnName {
		t.Fatalf("first certificate field = %s, want name", cert.Fields[0].Column)
	}

	stock, err := GetRecordKind("stock_component")
	if err != nil {
		t.Fatalf("stock_component: %v", err)
	}
	if stock.HasExpiry() {
		t.Fatalf("stock_component must not track expiry")
	}

	if _, err := GetRecordKind("passport"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestParseRecordKinds_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "empty", doc: "kinds: {}", wantErr: "no record kinds"},
		{name: "unknown column", doc: "kinds:\n  x:\n    fields:\n      - column: name\n      - column: colour\n", wantErr: "unknown column"},
		{name: "duplicate column", doc: "kinds:\n  x:\n    fields:\n      - column: name\n      - column: name\n", wantErr: "duplicate column"},
		{name: "missing name", doc: "kinds:\n  x:\n    fields:\n      - column: notes\n", wantErr: "name column is required"},
		{name: "expiry not a field", doc: "kinds:\n  x:\n    expiryField: expiry_date\n    fields:\n      - column: name\n", wantErr: "expiry field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecordKinds([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseRecordKinds_DefaultsEntityLabel(t *testing.T) {
	kinds, err := ParseRecordKinds([]byte("kinds:\n  permit:\n    fields:\n      - column: name\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if kinds["permit"].EntityLabel != "permit" || kinds["permit"].Name != "permit" {
		t.Fatalf("kind = %+v", kinds["permit"])
	}
}
