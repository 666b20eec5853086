package services

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
)

type fakeFileInfo struct {
	name string
	size int64
	dir  bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (f fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f fakeFileInfo) IsDir() bool        { return f.dir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

type fakeFiles struct {
	files  map[string]string
	sizes  map[string]int64
	opened int
}

func (f *fakeFiles) Stat(path string) (os.FileInfo, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	size := int64(len(content))
	if s, ok := f.sizes[path]; ok {
		size = s
	}
	return fakeFileInfo{name: path, size: size}, nil
}

func (f *fakeFiles) Open(path string) (io.ReadCloser, error) {
	f.opened++
	content, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func TestTranscriptValidate(t *testing.T) {
	svc := NewTranscriptService(nil)

	err := svc.Validate("   \n\t")
	if !apperrors.IsValidationError(err) || apperrors.UserMessage(err) != MsgEmptyTranscript {
		t.Fatalf("expected empty transcript error, got %v", err)
	}
	if err := svc.Validate("Host: hi"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTranscriptReadFile(t *testing.T) {
	files := &fakeFiles{
		files: map[string]string{
			"ep.txt":  "\ufeffHost: welcome",
			"big.srt": "x",
			"empty":   "",
		},
		sizes: map[string]int64{"big.srt": MaxTranscriptBytes + 1},
	}
	svc := NewTranscriptService(files)

	text, err := svc.ReadFile("ep.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if text != "Host: welcome" {
		t.Fatalf("text = %q, BOM should be stripped", text)
	}

	_, err = svc.ReadFile("big.srt")
	if apperrors.UserMessage(err) != MsgFileTooLarge {
		t.Fatalf("expected too large, got %v", err)
	}
	if files.opened != 1 {
		t.Fatalf("oversized file must be rejected before reading, opened = %d", files.opened)
	}

	if _, err := svc.ReadFile("missing.txt"); apperrors.UserMessage(err) != MsgFileReadFailed {
		t.Fatalf("expected read failure, got %v", err)
	}
	if _, err := svc.ReadFile("empty"); apperrors.UserMessage(err) != MsgEmptyTranscript {
		t.Fatalf("expected empty transcript, got %v", err)
	}
}

func TestTranscriptReadUpload(t *testing.T) {
	svc := NewTranscriptService(nil)

	if _, err := svc.ReadUpload("episode.pdf", 10, strings.NewReader("x")); !apperrors.IsValidationError(err) {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
	if _, err := svc.ReadUpload("episode.vtt", MaxTranscriptBytes+1, strings.NewReader("x")); apperrors.UserMessage(err) != MsgFileTooLarge {
		t.Fatalf("expected too large, got %v", err)
	}

	// 声明大小未知时按实际读到的字节数判断
	big := bytes.Repeat([]byte("a"), MaxTranscriptBytes+1)
	if _, err := svc.ReadUpload("episode.txt", -1, bytes.NewReader(big)); apperrors.UserMessage(err) != MsgFileTooLarge {
		t.Fatalf("expected too large for streamed body, got %v", err)
	}

	if _, err := svc.ReadUpload("episode.txt", 2, bytes.NewReader([]byte{0xff, 0xfe})); !apperrors.IsValidationError(err) {
		t.Fatalf("expected invalid UTF-8 error, got %v", err)
	}

	text, err := svc.ReadUpload("EPISODE.SRT", 30, strings.NewReader("1\n00:00:01,000 --> 00:00:02,000\nHi"))
	if err != nil {
		t.Fatalf("ReadUpload: %v", err)
	}
	if !strings.Contains(text, "00:00:01,000") {
		t.Fatal("file content must be kept verbatim")
	}
}

func TestIsAllowedTranscriptFile(t *testing.T) {
	for _, name := range []string{"a.txt", "b.SRT", "c.vtt", "d.md", "e.csv"} {
		if !IsAllowedTranscriptFile(name) {
			t.Errorf("%s should be allowed", name)
		}
	}
	for _, name := range []string{"a.pdf", "b", "c.docx"} {
		if IsAllowedTranscriptFile(name) {
			t.Errorf("%s should be rejected", name)
		}
	}
}
