package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStorageRoundTrip(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	path, err := fs.SaveTextFile("exports", "a.md", []byte("# A"))
	if err != nil {
		t.Fatalf("SaveTextFile: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(fs.BaseDir, "exports") {
		t.Fatalf("path = %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file should be renamed away")
	}

	content, err := fs.LoadTextFile("exports", "a.md")
	if err != nil || string(content) != "# A" {
		t.Fatalf("LoadTextFile = %q, %v", content, err)
	}

	// 保证修改时间有先后
	later := time.Now().Add(time.Second)
	if _, err := fs.SaveTextFile("exports", "b.md", []byte("# B")); err != nil {
		t.Fatalf("SaveTextFile: %v", err)
	}
	_ = os.Chtimes(filepath.Join(fs.BaseDir, "exports", "b.md"), later, later)

	files, err := fs.ListFiles("exports")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0].Name != "b.md" {
		t.Fatalf("files = %+v", files)
	}

	if err := fs.DeleteFile("exports", "a.md"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if fs.FileExists("exports", "a.md") {
		t.Fatal("file should be gone")
	}
	if err := fs.DeleteFile("exports", "a.md"); err == nil {
		t.Fatal("deleting a missing file should fail")
	}
}

func TestFileStorageRejectsEscapes(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	if _, err := fs.SaveTextFile("exports", "../x.md", []byte("x")); err == nil {
		t.Fatal("filename with path separators must be rejected")
	}
	if _, err := fs.SaveTextFile("../outside", "x.md", []byte("x")); err == nil {
		t.Fatal("directory outside base must be rejected")
	}
	if files, err := fs.ListFiles("missing"); err != nil || len(files) != 0 {
		t.Fatalf("ListFiles(missing) = %v, %v", files, err)
	}
}

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"I Quit Sugar (Here is what happened)": "I_Quit_Sugar_Here_is_what_happened",
		"  ../etc/passwd ":                     "etc_passwd",
		"":                                     "untitled",
		"???":                                  "untitled",
	}
	for in, want := range tests {
		if got := SafeFilename(in, 0); got != want {
			t.Errorf("SafeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := SafeFilename("abcdefghij", 4); got != "abcd" {
		t.Errorf("truncated = %q", got)
	}
}
