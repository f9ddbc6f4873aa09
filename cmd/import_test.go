package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mod-catalog/db"
	"mod-catalog/files"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestImportArchives(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	store := files.NewDiskStore(t.TempDir())

	writeFile(t, filepath.Join(src, "Foo-1.0.0.zip"), "foo")
	writeFile(t, filepath.Join(src, "nested", "Bar-2.0.0.ZIP"), "bar")
	writeFile(t, filepath.Join(src, "notes.txt"), "not an archive")
	writeFile(t, filepath.Join(src, ".cache", "Baz-1.0.0.zip"), "hidden")

	imported, err := importArchives(ctx, store, src)
	if err != nil {
		t.Fatalf("importArchives() failed: %v", err)
	}
	if imported != 2 {
		t.Errorf("expected 2 archives imported, got %d", imported)
	}

	// echo -n "foo" | sha1sum
	ok, err := store.Exists(ctx, "0beec7b5ea3f0fdbc95d0dd47f3c5bc275da8a33")
	if err != nil || !ok {
		t.Errorf("expected Foo archive in the store, got %v, %v", ok, err)
	}

	again, err := importArchives(ctx, store, src)
	if err != nil {
		t.Fatalf("second importArchives() failed: %v", err)
	}
	if again != 0 {
		t.Errorf("expected already stored archives to be skipped, got %d", again)
	}
}

func TestImportArchivesMissingDir(t *testing.T) {
	store := files.NewDiskStore(t.TempDir())
	if _, err := importArchives(context.Background(), store, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for a missing directory")
	}
}

func TestMissingArchives(t *testing.T) {
	ctx := context.Background()
	store := files.NewDiskStore(t.TempDir())
	src := filepath.Join(t.TempDir(), "a.zip")
	writeFile(t, src, "present")
	hash, _, err := store.Put(ctx, src)
	if err != nil {
		t.Fatal(err)
	}

	versions := []db.Version{{ZipHash: hash}, {ZipHash: "deadbeef"}, {}}
	missing, err := missingArchives(ctx, store, versions)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 2 || missing[0].ZipHash != "deadbeef" {
		t.Errorf("unexpected missing list %+v", missing)
	}
}
