package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fleet_backend/appctx"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
)

type fakeOwnerDocuments struct {
	mu    sync.Mutex
	calls [][]string
	rows  []*models.DocumentRecord
	err   error
}

func (f *fakeOwnerDocuments) ListByOwners(ctx context.Context, ownerKeys []string) ([]*models.DocumentRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), ownerKeys...))
	f.mu.Unlock()
	return f.rows, f.err
}

func TestOwnerDocumentLoader_BatchesKeys(t *testing.T) {
	source := &fakeOwnerDocuments{rows: []*models.DocumentRecord{
		{ID: "d1", OwnerKey: "emp-1"},
		{ID: "d2", OwnerKey: "emp-1"},
		{ID: "d3", OwnerKey: "emp-2"},
	}}
	ctx := WithLoaders(context.Background(), NewLoaders(source))

	keys := []string{"emp-1", "emp-2", "emp-3"}
	loader := For(ctx).ownerDocumentLoader
	thunks := loader.LoadMany(ctx, keys)
	got, errs := thunks()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("load: %v", err)
		}
	}

	if len(source.calls) != 1 {
		t.Fatalf("batch calls = %d, want 1", len(source.calls))
	}
	if len(got[0]) != 2 || len(got[1]) != 1 || len(got[2]) != 0 {
		t.Fatalf("documents per owner = %d/%d/%d", len(got[0]), len(got[1]), len(got[2]))
	}
	if got[2] == nil {
		t.Fatalf("owner without documents must load an empty list, not nil")
	}
}

func TestOwnerDocumentLoader_PropagatesError(t *testing.T) {
	source := &fakeOwnerDocuments{err: errors.New("db down")}
	ctx := WithLoaders(context.Background(), NewLoaders(source))
	if _, err := GetOwnerDocuments(ctx, "emp-1"); err == nil {
		t.Fatalf("expected the batch error")
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, err := utils.JwtGenerate(utils.JwtCustomClaim{Username: "ann", DisplayName: "Ann Lee", BusinessId: "biz-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  string
	}{
		{name: "valid bearer", header: "Bearer " + token, wantStatus: http.StatusOK, wantActor: "Ann Lee"},
		{name: "no header reaches guard", header: "", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actor string
			r := gin.New()
			r.Use(AuthMiddleware(), RequireSession())
			r.GET("/who", func(c *gin.Context) {
				actor = appctx.Actor(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if actor != tt.wantActor {
				t.Fatalf("actor = %q, want %q", actor, tt.wantActor)
			}
		})
	}
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/owners/:ownerKey/documents", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/owners/emp-42/documents", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	counter, err := httpRequestsTotal.GetMetricWithLabelValues(http.MethodGet, "/api/owners/:ownerKey/documents", "204")
	if err != nil {
		t.Fatalf("metric: %v", err)
	}
	if counter == nil {
		t.Fatalf("expected a series labelled with the route template")
	}
}

func TestLookupSessionUser_ServedFromLocalCache(t *testing.T) {
	profiles.Set("bob", &SessionUser{Username: "bob", BusinessId: "biz-2"}, 0)
	defer profiles.Delete("bob")

	user, err := lookupSessionUser(context.Background(), "bob")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	ctx := withSessionUser(context.Background(), user)
	if got := appctx.Actor(ctx); got != "bob" {
		t.Fatalf("actor = %q, want the username when no display name is set", got)
	}
	if businessId, _ := utils.GetBusinessIdFromContext(ctx); businessId != "biz-2" {
		t.Fatalf("business id = %q", businessId)
	}
}
