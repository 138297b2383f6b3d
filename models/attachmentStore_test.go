package models

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/mmdatafocus/fleet_backend/utils"
)

func TestMakeThumbnail(t *testing.T) {
	var src bytes.Buffer
	if err := imaging.Encode(&src, imaging.New(400, 300, color.White), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}

	thumb, err := MakeThumbnail(src.Bytes())
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Fatalf("thumbnail size = %dx%d, want 200x150", b.Dx(), b.Dy())
	}

	if _, err := MakeThumbnail([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMemoryAttachmentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAttachmentStore()
	pdf := []byte("%PDF-1.4\n%%EOF\n")

	key, err := store.Put(ctx, AttachmentFile{ObjectKey: "biz/documents/emp/a.pdf", FileName: "a.pdf", Data: pdf})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, contentType, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, pdf) || contentType != "application/pdf" {
		t.Fatalf("open = %q %s", got, contentType)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if ok, _ := store.Exists(ctx, key); ok {
		t.Fatalf("object still exists")
	}
	if _, _, err := store.Open(ctx, key); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("open deleted = %v", err)
	}

	if _, err := store.Put(ctx, AttachmentFile{FileName: "a.pdf", Data: pdf}); err == nil {
		t.Fatalf("expected error without object key")
	}
	if _, err := store.Put(ctx, AttachmentFile{ObjectKey: "biz/x.exe", Data: []byte("MZ\x90\x00")}); !errors.Is(err, utils.ErrorUnsupportedFile) {
		t.Fatalf("executable accepted: %v", err)
	}
}
