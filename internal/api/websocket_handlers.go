// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ProjectListStream 处理项目列表快照流连接
// 连接后立即收到一次完整快照，之后每次集合变更都推送替换快照
func (h *Handler) ProjectListStream(c *gin.Context) {
	userID := c.GetString("user_id")
	h.serveStream(c, projectListTopic(userID), userID)
}

// ProjectStream 处理单个项目的场景快照流连接
// 同一连接上推送 scenes / generatedScenes / combinedScenes 三个集合的快照
func (h *Handler) ProjectStream(c *gin.Context) {
	userID := c.GetString("user_id")
	projectID := c.Param("id")
	if projectID == "" {
		h.Response.BadRequest(c, "项目ID缺失")
		return
	}
	h.serveStream(c, projectTopic(userID, projectID), userID)
}

// StreamStatus 获取快照流管理器状态
func (h *Handler) StreamStatus(c *gin.Context) {
	h.Response.Success(c, h.Streams.GetStatus())
}

// serveStream 升级连接并接入指定主题
func (h *Handler) serveStream(c *gin.Context, topic, userID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	client := &StreamClient{
		conn:      &WebSocketConnWrapper{conn},
		topic:     topic,
		userID:    userID,
		send:      make(chan []byte, 256),
		closed:    0,
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	select {
	case h.Streams.register <- client:
		// Success
	default:
		log.Printf("❌ 无法注册快照流客户端，注册通道已满")
		return
	}

	defer func() {
		// Unregister with timeout to prevent blocking
		done := make(chan bool, 1)
		go func() {
			h.Streams.unregister <- client
			done <- true
		}()

		select {
		case <-done:
			// Successfully unregistered
		case <-time.After(5 * time.Second):
			log.Printf("⚠️ 快照流客户端注销超时")
		}
	}()

	go h.handleStreamWrites(client)
	h.handleStreamReads(client)
}

// handleStreamReads 处理 WebSocket 读取
// 客户端只需回应 ping，发来的其余消息仅用于保活
func (h *Handler) handleStreamReads(client *StreamClient) {
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket 读取错误: %v", err)
			}
			break
		}

		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("⚠️ JSON解析失败: %v", err)
			continue
		}

		client.UpdatePing()

		if msgType, _ := message["type"].(string); msgType == "ping" {
			client.SendMessage(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			})
		}
	}
}

// handleStreamWrites 处理 WebSocket 写入
func (h *Handler) handleStreamWrites(client *StreamClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
			func() {
				defer func() {
					if recover() != nil {
						// 通道已关闭
					}
				}()
				close(client.send)
			}()
			client.conn.Close()
		}
	}()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
