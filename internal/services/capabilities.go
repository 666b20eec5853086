// internal/services/capabilities.go
package services

import (
	"io"
	"os"
)

// ClipboardWriter 剪贴板写入能力，由前端注入
type ClipboardWriter interface {
	WriteAll(text string) error
}

// FileReader 本地文件读取能力
type FileReader interface {
	Stat(path string) (os.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
}

// OSFileReader 基于 os 包的 FileReader
type OSFileReader struct{}

func (OSFileReader) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (OSFileReader) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
