package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestPutGetObject(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	content := `[{"Close":123.4}]`
	if err := b.PutObject(ctx, "week1/AAPL/D.json", strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	r, size, err := b.GetObject(ctx, "week1/AAPL/D.json")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer r.Close()

	got, _ := io.ReadAll(r)
	if string(got) != content {
		t.Errorf("content = %q, want %q", got, content)
	}
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
}

func TestObjectExists(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	ok, err := b.ObjectExists(ctx, "week1/AAPL/D.json")
	if err != nil || ok {
		t.Fatalf("exists before put = %v, %v", ok, err)
	}

	b.PutObject(ctx, "week1/AAPL/D.json", strings.NewReader("[]"), 2)
	ok, err = b.ObjectExists(ctx, "week1/AAPL/D.json")
	if err != nil || !ok {
		t.Fatalf("exists after put = %v, %v", ok, err)
	}
}

func TestListFolders(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, key := range []string{
		"week2/MSFT/D.json",
		"week1/AAPL/D.json",
		"week1/AAPL/M.json",
		"week1/NVDA/after.json",
	} {
		if err := b.PutObject(ctx, key, strings.NewReader("[]"), 2); err != nil {
			t.Fatalf("PutObject %s: %v", key, err)
		}
	}

	folders, err := b.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("folders = %d, want 2", len(folders))
	}
	if folders[0].Name != "week1" || folders[1].Name != "week2" {
		t.Errorf("folder order = %s, %s", folders[0].Name, folders[1].Name)
	}
	if len(folders[0].Files) != 3 {
		t.Fatalf("week1 files = %d, want 3", len(folders[0].Files))
	}
	first := folders[0].Files[0]
	if first.FileName != "AAPL/D.json" {
		t.Errorf("first file = %s", first.FileName)
	}
	if first.MimeType != "application/json" || first.Size != 2 {
		t.Errorf("descriptor = %+v", first)
	}
}

func TestListFoldersSkipsNonJSON(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	b.PutObject(ctx, "week1/AAPL/D.json", strings.NewReader("[]"), 2)
	os.WriteFile(filepath.Join(b.rootPath, "week1", "README.txt"), []byte("x"), 0644)

	folders, err := b.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders[0].Files) != 1 {
		t.Errorf("files = %+v", folders[0].Files)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, _, err := b.GetObject(ctx, "../etc/passwd"); err == nil {
		t.Error("traversal key accepted by GetObject")
	}
	if err := b.PutObject(ctx, "/abs/path.json", strings.NewReader("[]"), 2); err == nil {
		t.Error("absolute key accepted by PutObject")
	}
}

func TestGetObjectMissing(t *testing.T) {
	b := newTestBackend(t)
	if _, _, err := b.GetObject(context.Background(), "week1/AAPL/D.json"); err == nil {
		t.Error("expected error for missing object")
	}
}
