// internal/tui/run.go
package tui

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/Corphon/PodcastContentFactory/internal/app"
	"github.com/Corphon/PodcastContentFactory/internal/config"
	"github.com/Corphon/PodcastContentFactory/internal/di"
	"github.com/Corphon/PodcastContentFactory/internal/services"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

var errNoTTY = errors.New("factory requires an interactive terminal (TTY)")

// systemClipboard 系统剪贴板
type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Run 解析参数、初始化服务并启动终端界面
func Run(args []string) error {
	fs := flag.NewFlagSet("factory", flag.ContinueOnError)
	file := fs.String("f", "", "transcript file ("+strings.Join(services.AllowedTranscriptExtensions, " ")+")")
	printDossier := fs.Bool("print", true, "print the dossier to stdout on exit")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errNoTTY
	}

	cfg := config.GetCurrentConfig()

	// 界面占用终端，日志只写文件
	logger := utils.GetLogger()
	logger.SetOutput(io.Discard)
	logger.SetLogLevel(utils.ParseLogLevel(cfg.LogLevel))
	if err := utils.InitLogger(utils.DailyLogFile(cfg.LogDir, time.Now())); err != nil {
		return err
	}
	defer utils.CloseLogger()

	if err := app.InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}
	container := di.GetContainer()
	defer container.CloseAll()

	project, ok := di.Resolve[*services.ProjectController](container, di.ServiceProject)
	if !ok {
		return fmt.Errorf("项目服务未正确初始化")
	}
	transcripts, ok := di.Resolve[*services.TranscriptService](container, di.ServiceTranscript)
	if !ok {
		return fmt.Errorf("转录稿服务未正确初始化")
	}

	var transcript string
	if path := strings.TrimSpace(*file); path != "" {
		text, err := transcripts.ReadFile(path)
		if err != nil {
			return err
		}
		transcript = text
	}

	var clip services.ClipboardWriter
	if !clipboard.Unsupported {
		clip = systemClipboard{}
	}

	m := New(project, transcripts, clip, transcript, cfg.GenerationTimeout+cfg.AnalyzingDelay)
	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errNoTTY
		}
		return err
	}

	if fm, ok := finalModel.(Model); ok && *printDossier && fm.Dossier() != "" {
		fmt.Println(fm.Dossier())
	}
	return nil
}

func stdinIsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
