package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/sirupsen/logrus"
)

// These fakes are DB-free. They record every call into a shared event log so tests can assert ordering.

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.snapshot() {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeDocs struct {
	log     *eventLog
	nextID  int
	failOn  map[string]bool // "create:<name>", "update:<id>", "delete:<id>"
	patches []*models.DocumentPatch
	creates []models.DocumentRecord
	deletes []string
}

func newFakeDocs(log *eventLog) *fakeDocs {
	return &fakeDocs{log: log, failOn: map[string]bool{}}
}

func (d *fakeDocs) Create(ctx context.Context, rec *models.DocumentRecord) (*models.DocumentRecord, error) {
	d.log.add("create:%s", rec.Name)
	if d.failOn["create:"+rec.Name] {
		return nil, errors.New("insert failed")
	}
	d.nextID++
	created := *rec
	created.ID = fmt.Sprintf("new-%d", d.nextID)
	d.creates = append(d.creates, created)
	return &created, nil
}

func (d *fakeDocs) Update(ctx context.Context, ownerKey string, patch *models.DocumentPatch) error {
	d.log.add("update:%s", patch.ID)
	if d.failOn["update:"+patch.ID] {
		return errors.New("update failed")
	}
	d.patches = append(d.patches, patch)
	return nil
}

func (d *fakeDocs) Delete(ctx context.Context, ownerKey string, id string) error {
	d.log.add("delete:%s", id)
	if d.failOn["delete:"+id] {
		return errors.New("delete failed")
	}
	d.deletes = append(d.deletes, id)
	return nil
}

type fakeBlobs struct {
	log        *eventLog
	delay      time.Duration
	failPut    map[string]bool // by file name
	failDelete map[string]bool // by key
	stored     map[string]bool // keys already in the bucket, e.g. signed uploads
	mu         sync.Mutex
	puts       int
}

func newFakeBlobs(log *eventLog) *fakeBlobs {
	return &fakeBlobs{log: log, failPut: map[string]bool{}, failDelete: map[string]bool{}, stored: map[string]bool{}}
}

func (b *fakeBlobs) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stored[key], nil
}

func (b *fakeBlobs) Put(ctx context.Context, file models.AttachmentFile) (string, error) {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	b.mu.Lock()
	b.puts++
	b.mu.Unlock()
	b.log.add("put:%s", file.ObjectKey)
	if b.failPut[file.FileName] {
		return "", errors.New("bucket unavailable")
	}
	return file.ObjectKey, nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	b.log.add("blob:%s", key)
	if b.failDelete[key] {
		return errors.New("blob delete failed")
	}
	return nil
}

func (b *fakeBlobs) putCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

type fakeAudit struct {
	log     *eventLog
	fail    bool
	entries []*models.History
}

func (a *fakeAudit) Append(ctx context.Context, entry *models.History) error {
	a.log.add("audit:%s", entry.Action)
	if a.fail {
		return errors.New("history insert failed")
	}
	a.entries = append(a.entries, entry)
	return nil
}

type fakePack struct {
	log     *eventLog
	fail    bool
	changes []models.PackChange
}

func (p *fakePack) SavePack(ctx context.Context, header models.OwnerHeader, change models.PackChange) (models.StringList, error) {
	p.log.add("pack:+%d-%d", len(change.Added), len(change.Removed))
	if p.fail {
		return nil, errors.New("pack write failed")
	}
	p.changes = append(p.changes, change)
	return change.ApplyTo(nil), nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var fixedNow = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)

type harness struct {
	log   *eventLog
	docs  *fakeDocs
	blobs *fakeBlobs
	audit *fakeAudit
	pack  *fakePack
	rec   *Reconciler
}

func newHarness() *harness {
	log := &eventLog{}
	h := &harness{
		log:   log,
		docs:  newFakeDocs(log),
		blobs: newFakeBlobs(log),
		audit: &fakeAudit{log: log},
		pack:  &fakePack{log: log},
	}
	h.rec = NewReconciler(h.docs, h.blobs, h.audit, h.pack, quietLogger(), time.UTC)
	h.rec.Now = func() time.Time { return fixedNow }
	return h
}

func testOwner() models.OwnerHeader {
	return models.OwnerHeader{OwnerKey: "emp-1", OwnerType: models.OwnerTypeEmployee, Name: "Jane Smith"}
}

func certificate(id, name, expiry, attachment string) *models.DocumentRecord {
	return &models.DocumentRecord{
		ID:            id,
		OwnerKey:      "emp-1",
		Kind:          "certificate",
		Name:          name,
		ExpiryDate:    expiry,
		AttachmentKey: attachment,
	}
}

func rowOf(rowKey string, rec *models.DocumentRecord) Row {
	return Row{RowKey: rowKey, Record: *rec}
}

func pendingFile(rowKey, objectKey, fileName string) PendingAttachment {
	return PendingAttachment{
		RowKey: rowKey,
		File:   models.AttachmentFile{ObjectKey: objectKey, FileName: fileName, ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
	}
}
