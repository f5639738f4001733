package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/florinutz/icelake/storage"
	"github.com/florinutz/icelake/storage/memory"
)

func TestBackend(t *testing.T) {
	b := memory.New()
	b.Put("metadata/v1.metadata.json", []byte("one"))
	b.Put("/metadata/v2.metadata.json", []byte("two"))
	b.Put("metadata/old/v0.metadata.json", []byte("zero"))
	b.Put("data/a.parquet", []byte("a"))
	ctx := context.Background()

	data, err := b.Read(ctx, "metadata/v2.metadata.json")
	if err != nil || string(data) != "two" {
		t.Fatalf("Read = %q, %v", data, err)
	}

	if _, err := b.Read(ctx, "metadata/v3.metadata.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Read(missing) error = %v, want ErrNotFound", err)
	}

	entries, err := b.List(ctx, "metadata/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Path != "metadata/v1.metadata.json" || entries[1].Path != "metadata/v2.metadata.json" {
		t.Errorf("List = %v", entries)
	}
	if entries[0].Size != 3 {
		t.Errorf("Size = %d, want 3", entries[0].Size)
	}

	b.Delete("metadata/v1.metadata.json")
	ok, err := b.Exists(ctx, "metadata/v1.metadata.json")
	if err != nil || ok {
		t.Errorf("Exists after Delete = %v, %v", ok, err)
	}
	if b.Len() != 3 {
		t.Errorf("Len = %d, want 3", b.Len())
	}
}

func TestBackend_FailOn(t *testing.T) {
	b := memory.New()
	b.Put("metadata/version-hint.text", []byte("1"))
	boom := errors.New("boom")
	b.FailOn("metadata/version-hint.text", boom)
	ctx := context.Background()

	if _, err := b.Read(ctx, "metadata/version-hint.text"); !errors.Is(err, boom) {
		t.Errorf("Read error = %v, want boom", err)
	}
	if _, err := b.Exists(ctx, "metadata/version-hint.text"); !errors.Is(err, boom) {
		t.Errorf("Exists error = %v, want boom", err)
	}

	b.FailOn("metadata/version-hint.text", nil)
	if _, err := b.Read(ctx, "metadata/version-hint.text"); err != nil {
		t.Errorf("Read after clear: %v", err)
	}
}

func TestBackend_ReadReturnsCopy(t *testing.T) {
	b := memory.New()
	b.Put("x", []byte("abc"))
	data, _ := b.Read(context.Background(), "x")
	data[0] = 'z'
	again, _ := b.Read(context.Background(), "x")
	if string(again) != "abc" {
		t.Errorf("stored object mutated: %q", again)
	}
}
