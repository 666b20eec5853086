// internal/services/transcript_service.go
package services

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
)

// MaxTranscriptBytes 文件来源的转录稿上限 10MB
const MaxTranscriptBytes = 10 * 1024 * 1024

// 面向用户的提示
const (
	MsgEmptyTranscript = "Please paste a transcript first."
	MsgFileTooLarge    = "File size too large. Please upload a file smaller than 10MB."
	MsgFileReadFailed  = "Failed to read file."
)

// AllowedTranscriptExtensions 上传时接受的扩展名
var AllowedTranscriptExtensions = []string{".txt", ".srt", ".vtt", ".md", ".csv"}

// TranscriptService 转录稿输入：只检查非空和大小，不解析格式
type TranscriptService struct {
	files    FileReader
	maxBytes int64
}

// NewTranscriptService 创建转录稿服务
func NewTranscriptService(files FileReader) *TranscriptService {
	if files == nil {
		files = OSFileReader{}
	}
	return &TranscriptService{files: files, maxBytes: MaxTranscriptBytes}
}

// Validate 粘贴的文本只要求非空
func (s *TranscriptService) Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.NewValidationError(MsgEmptyTranscript, nil)
	}
	return nil
}

// ReadFile 读取本地文件
func (s *TranscriptService) ReadFile(path string) (string, error) {
	info, err := s.files.Stat(path)
	if err != nil {
		return "", apperrors.NewValidationError(MsgFileReadFailed, err)
	}
	if info.IsDir() {
		return "", apperrors.NewValidationError(MsgFileReadFailed, fmt.Errorf("%s is a directory", path))
	}
	if info.Size() > s.maxBytes {
		return "", apperrors.NewValidationError(MsgFileTooLarge, nil)
	}

	f, err := s.files.Open(path)
	if err != nil {
		return "", apperrors.NewValidationError(MsgFileReadFailed, err)
	}
	defer f.Close()

	return s.read(f)
}

// ReadUpload 读取上传的文件；size 为客户端声明的大小，<0 表示未知
func (s *TranscriptService) ReadUpload(name string, size int64, r io.Reader) (string, error) {
	if !IsAllowedTranscriptFile(name) {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("Unsupported file type. Allowed: %s", strings.Join(AllowedTranscriptExtensions, ", ")), nil)
	}
	if size > s.maxBytes {
		return "", apperrors.NewValidationError(MsgFileTooLarge, nil)
	}
	return s.read(r)
}

// read 多读一个字节用来判断是否超限
func (s *TranscriptService) read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", apperrors.NewValidationError(MsgFileReadFailed, err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", apperrors.NewValidationError(MsgFileTooLarge, nil)
	}
	if !utf8.Valid(data) {
		return "", apperrors.NewValidationError(MsgFileReadFailed, fmt.Errorf("file is not valid UTF-8 text"))
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	if err := s.Validate(text); err != nil {
		return "", err
	}
	return text, nil
}

// IsAllowedTranscriptFile 按扩展名判断
func IsAllowedTranscriptFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedTranscriptExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
