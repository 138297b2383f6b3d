package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/mmdatafocus/fleet_backend/middlewares"
	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/sirupsen/logrus"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

type fakeOwners struct {
	mu     sync.Mutex
	owners map[string]*models.DocumentOwner
	packs  []models.PackChange
}

func (f *fakeOwners) SaveOwner(ctx context.Context, header models.OwnerHeader) (*models.DocumentOwner, error) {
	if err := utils.ValidateStruct(header); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	owner := &models.DocumentOwner{ID: header.OwnerKey, OwnerType: header.OwnerType, Name: header.Name}
	f.owners[header.OwnerKey] = owner
	return owner, nil
}

func (f *fakeOwners) GetOwner(ctx context.Context, ownerKey string) (*models.DocumentOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[ownerKey]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return owner, nil
}

func (f *fakeOwners) ListOwners(ctx context.Context, ownerType string) ([]*models.DocumentOwner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DocumentOwner
	for _, o := range f.owners {
		if ownerType == "" || o.OwnerType == ownerType {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOwners) SavePack(ctx context.Context, header models.OwnerHeader, change models.PackChange) (models.StringList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packs = append(f.packs, change)
	return change.ApplyTo(nil), nil
}

type fakeDocuments struct {
	mu      sync.Mutex
	rows    map[string][]*models.DocumentRecord
	created []*models.DocumentRecord
	failOn  map[string]bool
	nextID  int
}

func (f *fakeDocuments) Create(ctx context.Context, rec *models.DocumentRecord) (*models.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn["create:"+rec.Name] {
		return nil, errors.New("insert failed")
	}
	f.nextID++
	created := *rec
	created.ID = fmt.Sprintf("doc-%d", f.nextID)
	f.created = append(f.created, &created)
	return &created, nil
}

func (f *fakeDocuments) Update(ctx context.Context, ownerKey string, patch *models.DocumentPatch) error {
	return nil
}

func (f *fakeDocuments) Delete(ctx context.Context, ownerKey string, id string) error {
	return nil
}

func (f *fakeDocuments) ListByOwner(ctx context.Context, ownerKey string) ([]*models.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[ownerKey], nil
}

func (f *fakeDocuments) ListByOwners(ctx context.Context, ownerKeys []string) ([]*models.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DocumentRecord
	for _, key := range ownerKeys {
		out = append(out, f.rows[key]...)
	}
	return out, nil
}

type fakeHistories struct {
	mu      sync.Mutex
	entries []*models.History
	filters []models.HistoryFilter
}

func (f *fakeHistories) Append(ctx context.Context, entry *models.History) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistories) GetHistories(ctx context.Context, filter models.HistoryFilter) ([]*models.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeHistories) PaginateHistory(ctx context.Context, limit int, after *string, filter models.HistoryFilter) (*models.HistoriesConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	conn := &models.HistoriesConnection{PageInfo: &models.PageInfo{}}
	for _, h := range f.entries {
		conn.Edges = append(conn.Edges, &models.HistoriesEdge{Node: h, Cursor: h.GetCursor()})
	}
	return conn, nil
}

type graphHarness struct {
	owners      *fakeOwners
	documents   *fakeDocuments
	attachments *models.MemoryAttachmentStore
	histories   *fakeHistories
	server      http.Handler
}

func newGraphHarness(t *testing.T) *graphHarness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &graphHarness{
		owners:      &fakeOwners{owners: map[string]*models.DocumentOwner{}},
		documents:   &fakeDocuments{rows: map[string][]*models.DocumentRecord{}, failOn: map[string]bool{}},
		attachments: models.NewMemoryAttachmentStore(),
		histories:   &fakeHistories{},
	}
	expiring := func(ctx context.Context, days int, today time.Time) ([]*models.DocumentRecord, error) {
		return []*models.DocumentRecord{{OwnerKey: "emp-1", Kind: "certificate", Name: "CSCS", ExpiryDate: today.AddDate(0, 0, days).Format(models.DateLayout)}}, nil
	}
	resolver := NewResolver(h.owners, h.documents, h.attachments, h.histories, expiring, time.UTC, logger)

	srv := handler.New(NewExecutableSchema(Config{Resolvers: resolver}))
	srv.AddTransport(transport.POST{})
	srv.AddTransport(transport.MultipartForm{MaxMemory: 32 << 20, MaxUploadSize: 50 << 20})
	h.server = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := utils.SetUsernameInContext(r.Context(), "ann")
		ctx = utils.SetUserNameInContext(ctx, "Ann Lee")
		ctx = utils.SetBusinessIdInContext(ctx, "biz-1")
		ctx = middlewares.WithLoaders(ctx, middlewares.NewLoaders(h.documents))
		srv.ServeHTTP(w, r.WithContext(ctx))
	})
	return h
}

type gqlError struct {
	Message    string                 `json:"message"`
	Extensions map[string]interface{} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

func (r gqlResponse) field() string {
	if len(r.Errors) == 0 {
		return ""
	}
	field, _ := r.Errors[0].Extensions["field"].(string)
	return field
}

func (h *graphHarness) send(t *testing.T, req *http.Request, out interface{}) gqlResponse {
	t.Helper()
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, req)

	var resp gqlResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	if out != nil && len(resp.Errors) == 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			t.Fatalf("decode data %s: %v", resp.Data, err)
		}
	}
	return resp
}

func (h *graphHarness) query(t *testing.T, query string, variables map[string]interface{}, out interface{}) gqlResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return h.send(t, req, out)
}

// upload sends a GraphQL multipart request with one file bound to each listed variable path.
func (h *graphHarness) upload(t *testing.T, query string, variables map[string]interface{}, files map[string]string, out interface{}) gqlResponse {
	t.Helper()
	operations, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	fileMap := map[string][]string{}
	names := make([]string, 0, len(files))
	i := 0
	for path := range files {
		name := fmt.Sprint(i)
		fileMap[name] = []string{path}
		names = append(names, path)
		i++
	}
	rawMap, _ := json.Marshal(fileMap)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("operations", string(operations))
	_ = mw.WriteField("map", string(rawMap))
	for i, path := range names {
		part, err := mw.CreateFormFile(fmt.Sprint(i), files[path])
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		_, _ = part.Write(pdfBytes)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/query", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.send(t, req, out)
}
