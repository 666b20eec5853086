// internal/services/export_service.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/storage"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// ExportDir 数据目录下的导出子目录
const ExportDir = "exports"

// ExportService 把素材包导出为 markdown/text/json，可选保存到数据目录
type ExportService struct {
	storage *storage.FileStorage
}

// NewExportService storage 为 nil 时只能导出不能保存
func NewExportService(fileStorage *storage.FileStorage) *ExportService {
	return &ExportService{storage: fileStorage}
}

// Export 导出当前项目的素材包
func (s *ExportService) Export(state models.ProjectState, format models.ExportFormat, save bool) (*models.ExportResult, error) {
	if state.Assets == nil {
		return nil, apperrors.NewNotFoundError("No generated assets to export.", nil)
	}

	content, err := s.formatExportContent(state.Assets, format)
	if err != nil {
		return nil, err
	}

	title := ""
	if len(state.Assets.EpisodeTitles) > 0 {
		title = state.Assets.EpisodeTitles[0]
	}

	result := &models.ExportResult{
		ProjectID:   state.ID,
		Title:       title,
		Format:      format,
		Content:     content,
		GeneratedAt: time.Now(),
		Stats:       models.BundleStats(state.Assets),
	}

	if save {
		path, size, err := s.saveExportToDataDir(result)
		if err != nil {
			return nil, apperrors.NewProcessingError("Failed to save export.", err)
		}
		result.FilePath = path
		result.FileSize = size
	}
	return result, nil
}

func (s *ExportService) formatExportContent(bundle *models.AssetBundle, format models.ExportFormat) (string, error) {
	switch format {
	case models.ExportMarkdown, "":
		return models.BuildDossier(bundle), nil
	case models.ExportText:
		return formatAsText(models.BuildDossier(bundle)), nil
	case models.ExportJSON:
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return "", apperrors.NewProcessingError("Failed to encode assets.", err)
		}
		return string(data), nil
	default:
		return "", apperrors.NewValidationError(fmt.Sprintf("Unsupported export format: %s", format), nil)
	}
}

// formatAsText 去掉 markdown 标题标记
func formatAsText(dossier string) string {
	lines := strings.Split(dossier, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, "#")
		if len(trimmed) != len(line) {
			lines[i] = strings.ToUpper(strings.TrimSpace(trimmed))
		}
	}
	return strings.Join(lines, "\n")
}

func (s *ExportService) saveExportToDataDir(result *models.ExportResult) (string, int64, error) {
	if s.storage == nil {
		return "", 0, fmt.Errorf("export storage is not configured")
	}

	filename := fmt.Sprintf("%s_%s%s",
		result.GeneratedAt.Format("20060102_150405"),
		storage.SafeFilename(result.Title, 60),
		result.Format.Extension())

	path, err := s.storage.SaveTextFile(ExportDir, filename, []byte(result.Content))
	if err != nil {
		return "", 0, err
	}

	utils.GetLogger().Info("Export saved", map[string]interface{}{
		"path":   path,
		"format": string(result.Format),
	})
	return path, int64(len(result.Content)), nil
}

// ListExports 已保存的导出文件
func (s *ExportService) ListExports() ([]storage.StoredFile, error) {
	if s.storage == nil {
		return []storage.StoredFile{}, nil
	}
	return s.storage.ListFiles(ExportDir)
}
