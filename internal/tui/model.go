// internal/tui/model.go
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/services"
)

// Project 终端界面用到的项目操作
type Project interface {
	Start(ctx context.Context, transcript string) (*models.ProjectState, error)
	Chat(ctx context.Context, text string) (*models.ChatReply, error)
	Dossier() (string, error)
	CopyDossier(clipboard services.ClipboardWriter) error
	Reset() (models.ProjectState, error)
	State() models.ProjectState
}

type mode int

const (
	modeInput mode = iota
	modeGenerating
	modeResult
	modeChatting
)

// 标题、状态行、输入框和边框占用的行数
const chromeHeight = 7

type generatedMsg struct {
	state *models.ProjectState
	err   error
}

type chatReplyMsg struct {
	reply *models.ChatReply
	err   error
}

type copiedMsg struct {
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	modelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle = map[models.ProcessingStatus]lipgloss.Style{
		models.StatusIdle:       mutedStyle,
		models.StatusAnalyzing:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		models.StatusGenerating: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		models.StatusComplete:   okStyle,
		models.StatusError:      errorStyle,
	}
)

// Model 生成素材、浏览导出文本并与转录稿聊天
type Model struct {
	project     Project
	transcripts *services.TranscriptService
	clipboard   services.ClipboardWriter
	timeout     time.Duration

	mode       mode
	transcript string
	dossier    string
	history    []models.ChatMessage
	status     models.ProcessingStatus
	message    string
	errMessage string

	width    int
	height   int
	spinner  spinner.Model
	viewport viewport.Model
	input    textinput.Model
}

// New 创建模型；transcript 非空时启动后直接开始生成
func New(project Project, transcripts *services.TranscriptService, clipboard services.ClipboardWriter,
	transcript string, timeout time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle[models.StatusGenerating]

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Width = 60
	input.Focus()

	m := Model{
		project:     project,
		transcripts: transcripts,
		clipboard:   clipboard,
		timeout:     timeout,
		transcript:  transcript,
		status:      project.State().Status,
		spinner:     sp,
		viewport:    viewport.New(80, 20),
		input:       input,
	}

	if strings.TrimSpace(transcript) != "" {
		m.mode = modeGenerating
	} else {
		m.mode = modeInput
		m.input.Placeholder = "path/to/transcript.txt"
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.mode == modeGenerating {
		return tea.Batch(m.spinner.Tick, m.generateCmd(m.transcript))
	}
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = maxInt(msg.Width-4, 20)
		m.viewport.Height = maxInt(msg.Height-chromeHeight, 3)
		m.input.Width = maxInt(msg.Width-8, 20)
		m.refreshViewport(false)
		return m, nil

	case spinner.TickMsg:
		m.status = m.project.State().Status
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case generatedMsg:
		return m.onGenerated(msg), nil

	case chatReplyMsg:
		return m.onChatReply(msg), nil

	case copiedMsg:
		if msg.err != nil {
			m.errMessage = "Copy failed: " + apperrors.UserMessage(msg.err)
			m.message = ""
		} else {
			m.errMessage = ""
			m.message = "Dossier copied to clipboard."
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+y":
		if m.dossier == "" {
			m.errMessage = "Nothing to copy yet."
			return m, nil
		}
		return m, m.copyCmd()
	case "ctrl+r":
		if m.busy() {
			return m, nil
		}
		return m.reset(), textinput.Blink
	}

	switch m.mode {
	case modeInput:
		if msg.Type == tea.KeyEnter {
			return m.submitPath()
		}
	case modeResult:
		switch msg.Type {
		case tea.KeyEnter:
			return m.submitChat()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case modeGenerating, modeChatting:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitPath 读取文件并开始生成
func (m Model) submitPath() (tea.Model, tea.Cmd) {
	path := strings.TrimSpace(m.input.Value())
	if path == "" {
		m.errMessage = services.MsgEmptyTranscript
		return m, nil
	}

	text, err := m.transcripts.ReadFile(path)
	if err != nil {
		m.errMessage = apperrors.UserMessage(err)
		return m, nil
	}

	m.transcript = text
	m.mode = modeGenerating
	m.errMessage = ""
	m.message = ""
	m.input.Reset()
	m.input.Placeholder = ""
	return m, tea.Batch(m.spinner.Tick, m.generateCmd(text))
}

func (m Model) submitChat() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.mode = modeChatting
	m.errMessage = ""
	m.message = ""
	m.history = append(append([]models.ChatMessage(nil), m.history...),
		models.ChatMessage{Role: models.ChatRoleUser, Text: text})
	m.refreshViewport(true)
	return m, tea.Batch(m.spinner.Tick, m.chatCmd(text))
}

func (m Model) onGenerated(msg generatedMsg) Model {
	if msg.state != nil {
		m.status = msg.state.Status
	} else {
		m.status = m.project.State().Status
	}

	if msg.err != nil {
		m.mode = modeInput
		m.errMessage = apperrors.UserMessage(msg.err)
		if msg.state != nil && msg.state.Error != "" {
			m.errMessage = msg.state.Error
		}
		m.input.Placeholder = "path/to/transcript.txt"
		return m
	}

	dossier, err := m.project.Dossier()
	if err != nil {
		m.mode = modeInput
		m.errMessage = apperrors.UserMessage(err)
		return m
	}

	m.mode = modeResult
	m.dossier = dossier
	m.history = nil
	m.message = "Assets ready. Ask a follow-up question or press ctrl+y to copy the dossier."
	m.input.Placeholder = "Ask about this episode..."
	m.refreshViewport(false)
	return m
}

func (m Model) onChatReply(msg chatReplyMsg) Model {
	m.mode = modeResult
	if msg.reply == nil {
		m.errMessage = apperrors.UserMessage(msg.err)
		return m
	}
	m.history = msg.reply.History
	if msg.reply.Failed {
		m.errMessage = msg.reply.Reply
	}
	m.refreshViewport(true)
	return m
}

// reset 回到输入模式；项目里的素材和会话一并丢弃
func (m Model) reset() Model {
	state, err := m.project.Reset()
	if err != nil {
		m.errMessage = apperrors.UserMessage(err)
		return m
	}
	m.status = state.Status
	m.mode = modeInput
	m.transcript = ""
	m.dossier = ""
	m.history = nil
	m.message = ""
	m.errMessage = ""
	m.input.Reset()
	m.input.Placeholder = "path/to/transcript.txt"
	m.refreshViewport(false)
	return m
}

func (m Model) busy() bool {
	return m.mode == modeGenerating || m.mode == modeChatting
}

func (m *Model) refreshViewport(bottom bool) {
	m.viewport.SetContent(m.renderContent())
	if bottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderContent() string {
	if m.dossier == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.dossier)
	if len(m.history) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(titleStyle.Render("## CHAT"))
		sb.WriteString("\n")
	}
	for _, msg := range m.history {
		label := modelStyle.Render("AI:")
		if msg.Role == models.ChatRoleUser {
			label = userStyle.Render("You:")
		}
		sb.WriteString(fmt.Sprintf("\n%s %s\n", label, msg.Text))
	}
	return sb.String()
}

func (m Model) generateCmd(transcript string) tea.Cmd {
	project := m.project
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := contextWithTimeout(timeout)
		defer cancel()
		state, err := project.Start(ctx, transcript)
		return generatedMsg{state: state, err: err}
	}
}

func (m Model) chatCmd(text string) tea.Cmd {
	project := m.project
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := contextWithTimeout(timeout)
		defer cancel()
		reply, err := project.Chat(ctx, text)
		return chatReplyMsg{reply: reply, err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	project := m.project
	clipboard := m.clipboard
	return func() tea.Msg {
		return copiedMsg{err: project.CopyDossier(clipboard)}
	}
}

func contextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (m Model) View() string {
	lines := []string{titleStyle.Render("Podcast Content Factory") + "  " + m.renderStatus()}

	switch m.mode {
	case modeInput:
		lines = append(lines, "", "Transcript file:", m.input.View())
	case modeGenerating:
		lines = append(lines, "", m.spinner.View()+" "+phaseLabel(m.status))
	case modeResult, modeChatting:
		lines = append(lines, m.viewport.View())
		if m.mode == modeChatting {
			lines = append(lines, m.spinner.View()+" Thinking...")
		} else {
			lines = append(lines, m.input.View())
		}
	}

	if m.errMessage != "" {
		lines = append(lines, errorStyle.Render(m.errMessage))
	} else if m.message != "" {
		lines = append(lines, okStyle.Render(m.message))
	}
	lines = append(lines, mutedStyle.Render(helpLine(m.mode)))

	return panelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	style, ok := statusStyle[m.status]
	if !ok {
		style = mutedStyle
	}
	return style.Render("[" + string(m.status) + "]")
}

func phaseLabel(status models.ProcessingStatus) string {
	switch status {
	case models.StatusAnalyzing:
		return "Analyzing transcript..."
	case models.StatusGenerating:
		return "Generating assets..."
	default:
		return "Working..."
	}
}

func helpLine(mode mode) string {
	switch mode {
	case modeInput:
		return "enter: generate • ctrl+c: quit"
	case modeResult:
		return "enter: send • ↑/↓ pgup/pgdn: scroll • ctrl+y: copy dossier • ctrl+r: new transcript • ctrl+c: quit"
	default:
		return "ctrl+c: quit"
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Dossier 当前显示的导出文本
func (m Model) Dossier() string {
	return m.dossier
}
