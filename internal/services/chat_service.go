// internal/services/chat_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Corphon/PodcastContentFactory/internal/config"
	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/llm"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// seedTurns 会话开头的合成消息数
const seedTurns = 2

// ChatSession 绑定到一份转录稿的多轮对话，历史只追加
type ChatSession struct {
	ID        string
	CreatedAt time.Time

	transcript string

	sendMutex sync.Mutex // 串行化 SendMessage，持有期间会等待上游调用

	mutex   sync.RWMutex
	history []models.ChatMessage // 含两条种子消息
}

// Transcript 会话绑定的转录稿
func (cs *ChatSession) Transcript() string {
	return cs.transcript
}

// History 返回用户可见的历史副本（不含种子消息）
// 发送进行中也可以读取，不会等待上游调用
func (cs *ChatSession) History() []models.ChatMessage {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	out := make([]models.ChatMessage, len(cs.history)-seedTurns)
	copy(out, cs.history[seedTurns:])
	return out
}

// appendTurn 追加一条消息，返回追加前的全部历史（含种子）
func (cs *ChatSession) appendTurn(role models.ChatRole, text string) []models.ChatMessage {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	prior := make([]models.ChatMessage, len(cs.history))
	copy(prior, cs.history)
	cs.history = append(cs.history, models.ChatMessage{Role: role, Text: text, CreatedAt: time.Now()})
	return prior
}

// toMessages 转换为 provider 使用的消息格式
func toMessages(history []models.ChatMessage) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: string(m.Role), Text: m.Text})
	}
	return messages
}

// ChatService 管理聊天会话的发送
type ChatService struct {
	LLMService *LLMService
	timeout    time.Duration
	metrics    *utils.APIMetrics
}

// NewChatService 创建聊天服务；timeout<=0 时使用默认值
func NewChatService(llmService *LLMService, timeout time.Duration, metrics *utils.APIMetrics) *ChatService {
	if timeout <= 0 {
		timeout = config.DefaultChatTimeout
	}
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &ChatService{
		LLMService: llmService,
		timeout:    timeout,
		metrics:    metrics,
	}
}

// CreateSession 用转录稿建立会话，需要已配置密钥
func (s *ChatService) CreateSession(transcript string) (*ChatSession, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, apperrors.NewValidationError(MsgEmptyTranscript, nil)
	}
	if s.LLMService == nil {
		return nil, apperrors.NewConfigurationError("LLM service is not available.", nil)
	}
	if err := s.LLMService.EnsureConfigured(); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &ChatSession{
		ID:         uuid.New().String(),
		CreatedAt:  now,
		transcript: transcript,
		history: []models.ChatMessage{
			{Role: models.ChatRoleUser, Text: buildChatSeed(transcript), CreatedAt: now},
			{Role: models.ChatRoleModel, Text: chatSeedModelReply, CreatedAt: now},
		},
	}
	return session, nil
}

// SendMessage 追加用户消息并请求回复。每次调用历史恰好增加两条：
// 成功时是模型回复（空回复用兜底文案），失败时是道歉消息并返回 chat_error。
func (s *ChatService) SendMessage(ctx context.Context, session *ChatSession, text string) (string, error) {
	if session == nil {
		return "", apperrors.NewNotFoundError("No active chat session.", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidationError("Message must not be empty.", nil)
	}

	session.sendMutex.Lock()
	defer session.sendMutex.Unlock()

	prior := toMessages(session.appendTurn(models.ChatRoleUser, text))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.LLMService.Complete(ctx, llm.CompletionRequest{
		Messages:    prior,
		Prompt:      text,
		Temperature: chatTemperature,
	})
	if err != nil {
		session.appendTurn(models.ChatRoleModel, ChatErrorReply)
		s.metrics.RecordChatMessage(true)
		utils.GetLogger().Warn("Chat message failed", map[string]interface{}{
			"session_id": session.ID,
			"err":        err.Error(),
		})
		return "", apperrors.NewChatError(ChatErrorReply, err)
	}

	reply := ""
	if resp != nil {
		reply = resp.Text
	}
	if strings.TrimSpace(reply) == "" {
		reply = ChatFallbackReply
	}

	session.appendTurn(models.ChatRoleModel, reply)
	s.metrics.RecordChatMessage(false)
	return reply, nil
}
