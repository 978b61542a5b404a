package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello")
	if err := os.WriteFile(path, []byte("hello world!!"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewOSFilesystem()
	st, err := fs.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Type != KindFile {
		t.Fatalf("got type %v, want KindFile", st.Type)
	}
	if st.Size != 13 {
		t.Fatalf("got size %v, want 13", st.Size)
	}
	if st.AbsPath != path {
		t.Fatalf("got abspath %v, want %v", st.AbsPath, path)
	}
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	fs := NewOSFilesystem()
	entries, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	kinds := map[string]string{}
	for _, e := range entries {
		kinds[e.Name] = e.Kind
	}
	if kinds["a.txt"] != "file" {
		t.Fatalf("a.txt kind = %v", kinds["a.txt"])
	}
	if kinds["sub"] != "folder" {
		t.Fatalf("sub kind = %v", kinds["sub"])
	}
}

func TestMkdirAllIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b")

	fs := NewOSFilesystem()
	if err := fs.MkdirAll(target); err != nil {
		t.Fatalf("first mkdir: %v", err)
	}
	if err := fs.MkdirAll(target); err != nil {
		t.Fatalf("second mkdir on existing dir should succeed: %v", err)
	}
}

func TestOpenWriteResumeSeek(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.bin")

	fs := NewOSFilesystem()
	w, err := fs.OpenWrite(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	w.Close()

	w2, err := fs.OpenWrite(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w2.Seek(5, os.SEEK_SET); err != nil {
		t.Fatal(err)
	}
	if _, err := w2.Write([]byte("ABCDE")); err != nil {
		t.Fatal(err)
	}
	w2.Close()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "01234ABCDE" {
		t.Fatalf("got %q", got)
	}
}

func TestDirEntryFormat(t *testing.T) {
	e := DirEntry{Name: "hello.txt", Kind: "file", Size: 13}
	got := e.Format()
	want := "hello.txt|file|13|0001-01-01 00:00:00|0001-01-01 00:00:00"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
