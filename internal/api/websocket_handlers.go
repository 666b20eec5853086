// internal/api/websocket_handlers.go
package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "github.com/Corphon/PodcastContentFactory/internal/errors"
	"github.com/Corphon/PodcastContentFactory/internal/models"
	"github.com/Corphon/PodcastContentFactory/internal/utils"
)

// wsInbound 客户端发来的消息
type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatWebSocket 聊天与状态推送通道
func (h *Handler) ChatWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := newWebSocketClient(uuid.NewString(), conn)
	if !h.WebSockets.Register(client) {
		client.Close()
		return
	}
	defer h.WebSockets.Unregister(client)

	go h.handleWebSocketWrites(client)
	h.sendWelcomeMessage(client)

	// 读循环阻塞到连接关闭
	h.handleWebSocketReads(client)
}

// handleWebSocketReads 处理 WebSocket 读取
func (h *Handler) handleWebSocketReads(client *WebSocketClient) {
	client.conn.SetReadLimit(wsMaxMessage)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for !client.IsClosed() {
		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.GetLogger().Warn("WebSocket read error", map[string]interface{}{
					"client_id": client.id,
					"error":     err.Error(),
				})
			}
			return
		}

		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var message wsInbound
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			client.SendError(ErrorBadRequest, "Invalid message format.")
			continue
		}
		h.handleMessage(client, message)
	}
}

// handleWebSocketWrites 处理 WebSocket 写入和心跳
func (h *Handler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage 处理收到的 WebSocket 消息
func (h *Handler) handleMessage(client *WebSocketClient, message wsInbound) {
	switch message.Type {
	case "chat":
		h.handleChatMessage(client, message.Text)
	case "status":
		client.SendMessage(statusMessage(h.Project.State()))
	case "ping":
		client.SendMessage(map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now().Unix(),
		})
	default:
		client.SendError(ErrorBadRequest, "Unknown message type: "+message.Type)
	}
}

// handleChatMessage 发送一条聊天消息，失败时回复里带 failed 标记
func (h *Handler) handleChatMessage(client *WebSocketClient, text string) {
	reply, err := h.Project.Chat(context.Background(), text)
	if reply == nil {
		_, code := statusForError(err)
		if apperrors.IsNotFoundError(err) {
			code = ErrorChatSessionNotFound
		}
		client.SendError(code, apperrors.UserMessage(err))
		return
	}

	client.SendMessage(map[string]interface{}{
		"type":      "chat:reply",
		"reply":     reply.Reply,
		"failed":    reply.Failed,
		"history":   reply.History,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// sendWelcomeMessage 发送欢迎消息
func (h *Handler) sendWelcomeMessage(client *WebSocketClient) {
	state := h.Project.State()
	client.SendMessage(map[string]interface{}{
		"type":      "connected",
		"client_id": client.id,
		"status":    state.Status,
		"has_chat":  h.Project.Session() != nil,
		"timestamp": time.Now().Format(time.RFC3339),
		"message":   "WebSocket connection established",
	})
}

// statusMessage 状态变化推送，不带转录稿和素材包
func statusMessage(state models.ProjectState) map[string]interface{} {
	return map[string]interface{}{
		"type":       "status",
		"project_id": state.ID,
		"status":     state.Status,
		"error":      state.Error,
		"has_assets": state.Assets != nil,
		"timestamp":  state.UpdatedAt.Format(time.RFC3339),
	}
}
