package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/llm"
	"github.com/Corphon/PodcastContentFactory/internal/models"
)

func newTestChatService(t *testing.T, fake *fakeProvider) *ChatService {
	t.Helper()
	svc, _ := newTestLLMService(t, fake, "key")
	return NewChatService(svc, time.Second, nil)
}

func TestCreateSessionSeedsHistory(t *testing.T) {
	chat := newTestChatService(t, &fakeProvider{})

	session, err := chat.CreateSession("the transcript")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Transcript() != "the transcript" {
		t.Fatalf("Transcript = %q", session.Transcript())
	}
	if len(session.History()) != 0 {
		t.Fatalf("seed turns must not be visible, got %v", session.History())
	}
}

func TestCreateSessionRequiresKey(t *testing.T) {
	svc, _ := newTestLLMService(t, &fakeProvider{}, "")
	chat := NewChatService(svc, time.Second, nil)

	if _, err := chat.CreateSession("t"); !apperrors.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSendMessageAppendsTwoTurns(t *testing.T) {
	fake := &fakeProvider{respond: replyWith("Here are three hooks.")}
	chat := newTestChatService(t, fake)
	session, _ := chat.CreateSession("episode about sugar")

	for i := 1; i <= 3; i++ {
		reply, err := chat.SendMessage(context.Background(), session, "write me a tweet")
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		if reply != "Here are three hooks." {
			t.Fatalf("reply = %q", reply)
		}
		if got := len(session.History()); got != 2*i {
			t.Fatalf("history length = %d, want %d", got, 2*i)
		}
	}

	req := fake.lastRequest()
	if req.Prompt != "write me a tweet" {
		t.Fatalf("prompt = %q", req.Prompt)
	}
	// 两条种子 + 前两轮的四条
	if len(req.Messages) != 6 {
		t.Fatalf("messages sent = %d, want 6", len(req.Messages))
	}
	if req.Messages[0].Role != llm.RoleUser || !strings.Contains(req.Messages[0].Text, "episode about sugar") {
		t.Fatalf("first seed turn = %+v", req.Messages[0])
	}
	if req.Messages[1].Role != llm.RoleModel || req.Messages[1].Text != chatSeedModelReply {
		t.Fatalf("second seed turn = %+v", req.Messages[1])
	}

	history := session.History()
	if history[0].Role != models.ChatRoleUser || history[1].Role != models.ChatRoleModel {
		t.Fatalf("history roles = %s, %s", history[0].Role, history[1].Role)
	}
}

func TestSendMessageFailureAppendsApology(t *testing.T) {
	fake := &fakeProvider{respond: func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("network down")
	}}
	chat := newTestChatService(t, fake)
	session, _ := chat.CreateSession("t")

	_, err := chat.SendMessage(context.Background(), session, "hello")
	if !apperrors.IsChatError(err) {
		t.Fatalf("expected chat error, got %v", err)
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Role != models.ChatRoleModel || history[1].Text != ChatErrorReply {
		t.Fatalf("last turn = %+v", history[1])
	}
}

func TestSendMessageEmptyReplyFallback(t *testing.T) {
	chat := newTestChatService(t, &fakeProvider{respond: replyWith("")})
	session, _ := chat.CreateSession("t")

	reply, err := chat.SendMessage(context.Background(), session, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != ChatFallbackReply {
		t.Fatalf("reply = %q", reply)
	}
}

func TestSendMessageValidation(t *testing.T) {
	chat := newTestChatService(t, &fakeProvider{})
	session, _ := chat.CreateSession("t")

	if _, err := chat.SendMessage(context.Background(), session, "  "); !apperrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(session.History()) != 0 {
		t.Fatal("rejected message must not be recorded")
	}
	if _, err := chat.SendMessage(context.Background(), nil, "hi"); !apperrors.IsNotFoundError(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSendMessageSerializesSends(t *testing.T) {
	chat := newTestChatService(t, &fakeProvider{respond: replyWith("ok")})
	session, _ := chat.CreateSession("t")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = chat.SendMessage(context.Background(), session, "ping")
		}()
	}
	wg.Wait()

	history := session.History()
	if len(history) != 16 {
		t.Fatalf("history length = %d, want 16", len(history))
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != models.ChatRoleUser || history[i+1].Role != models.ChatRoleModel {
			t.Fatalf("turns interleaved at %d", i)
		}
	}
}

func TestHistoryReadableDuringSend(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fake := &fakeProvider{respond: func(llm.CompletionRequest) (*llm.CompletionResponse, error) {
		close(entered)
		<-release
		return &llm.CompletionResponse{Text: "done"}, nil
	}}
	chat := newTestChatService(t, fake)
	session, _ := chat.CreateSession("t")

	sent := make(chan error, 1)
	go func() {
		_, err := chat.SendMessage(context.Background(), session, "ping")
		sent <- err
	}()
	<-entered

	read := make(chan []models.ChatMessage, 1)
	go func() { read <- session.History() }()

	select {
	case history := <-read:
		if len(history) != 1 || history[0].Text != "ping" {
			t.Fatalf("发送中的历史 = %+v", history)
		}
	case <-time.After(time.Second):
		close(release)
		t.Fatal("History 在上游调用期间被阻塞")
	}

	close(release)
	if err := <-sent; err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got := len(session.History()); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}
