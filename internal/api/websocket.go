// internal/api/websocket.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/SceneStudio/internal/collection"
	"github.com/Corphon/SceneStudio/internal/storage"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketConnWrapper 包装真实的 websocket.Conn 以实现接口
type WebSocketConnWrapper struct {
	*websocket.Conn
}

// StreamClient 表示一个订阅快照流的客户端连接
type StreamClient struct {
	conn      WebSocketConnection
	topic     string
	userID    string
	send      chan []byte
	closed    int32     // 原子操作标志，0=开启，1=关闭
	lastPing  time.Time // 最后一次ping时间
	createdAt time.Time // 创建时间
}

// Close 安全关闭客户端连接
func (client *StreamClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		// 只设置关闭标志，通道由写协程的 defer 负责关闭
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *StreamClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *StreamClient) UpdatePing() {
	client.lastPing = time.Now()
}

// IsExpired 检查连接是否超时
func (client *StreamClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(client.lastPing) > timeout
}

// SendMessage 安全发送消息到客户端
func (client *StreamClient) SendMessage(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if !client.enqueue(msgBytes) {
		// 队列满，记录警告但不阻塞
		log.Printf("⚠️ 客户端 %s 消息队列已满，消息被丢弃", client.userID)
	}
	return nil
}

// enqueue 非阻塞投递，返回 false 表示队列已满
// 写协程可能在检查关闭标志之后关闭通道，向已关闭通道的投递按丢弃处理
func (client *StreamClient) enqueue(msgBytes []byte) (delivered bool) {
	if client.IsClosed() {
		return true
	}

	defer func() {
		if recover() != nil {
			delivered = true
		}
	}()

	select {
	case client.send <- msgBytes:
		return true
	default:
		return false
	}
}

// SendError 发送错误消息到客户端
func (client *StreamClient) SendError(errorMsg string) {
	client.SendMessage(map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// topicFeed 包装一个集合订阅，屏蔽具体的实体类型
type topicFeed struct {
	kind     string
	deselect func()
	current  func() interface{}
}

// streamTopic 表示一个订阅主题及其活跃连接
// 主题在第一个客户端加入时打开集合订阅，在最后一个客户端离开时关闭
type streamTopic struct {
	key       string
	userID    string
	projectID string
	clients   map[WebSocketConnection]*StreamClient
	feeds     []*topicFeed
}

// StreamManager 管理所有快照流连接
// 每个主题持有常驻的集合订阅，集合变更时向主题内所有客户端推送完整快照
type StreamManager struct {
	store         *storage.DocStore
	topics        map[string]*streamTopic
	register      chan *StreamClient
	unregister    chan *StreamClient
	cleanup       chan bool
	mutex         sync.RWMutex
	pingTimeout   time.Duration
	cleanupTicker *time.Ticker
}

// NewStreamManager 创建快照流管理器
func NewStreamManager(store *storage.DocStore) *StreamManager {
	return &StreamManager{
		store:       store,
		topics:      make(map[string]*streamTopic),
		register:    make(chan *StreamClient, 256),
		unregister:  make(chan *StreamClient, 256),
		cleanup:     make(chan bool, 1),
		pingTimeout: 60 * time.Second,
	}
}

// 主题键
func projectListTopic(userID string) string {
	return "users/" + userID + "/projects"
}

func projectTopic(userID, projectID string) string {
	return "users/" + userID + "/projects/" + projectID
}

// Run 运行管理器主循环
func (manager *StreamManager) Run() {
	manager.cleanupTicker = time.NewTicker(30 * time.Second)
	defer manager.cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)

		case client := <-manager.unregister:
			manager.unregisterClient(client)

		case <-manager.cleanupTicker.C:
			manager.cleanupExpiredConnections()

		case <-manager.cleanup:
			manager.shutdown()
			return
		}
	}
}

// Stop 请求关闭管理器
func (manager *StreamManager) Stop() {
	select {
	case manager.cleanup <- true:
	default:
	}
}

// registerClient 注册新客户端，必要时打开主题订阅
func (manager *StreamManager) registerClient(client *StreamClient) {
	if client == nil {
		log.Printf("⚠️ 尝试注册 nil 客户端，忽略")
		return
	}

	manager.mutex.Lock()
	topic, exists := manager.topics[client.topic]
	if !exists {
		userID, projectID, ok := parseTopicKey(client.topic)
		if !ok {
			manager.mutex.Unlock()
			client.SendError("无效的订阅主题")
			client.Close()
			return
		}
		topic = &streamTopic{
			key:       client.topic,
			userID:    userID,
			projectID: projectID,
			clients:   make(map[WebSocketConnection]*StreamClient),
		}
		manager.topics[client.topic] = topic
	}
	topic.clients[client.conn] = client
	client.UpdatePing()
	manager.mutex.Unlock()

	if !exists {
		// 第一个客户端：打开集合订阅
		// Select 在锁外执行，初始快照经由 broadcastToTopic 推送
		manager.openFeeds(topic)
	} else {
		// 后来的客户端：直接补发当前快照
		for _, feed := range topic.feeds {
			client.SendMessage(map[string]interface{}{
				"type":       "snapshot",
				"collection": feed.kind,
				"items":      feed.current(),
				"timestamp":  time.Now().Format(time.RFC3339),
			})
		}
	}

	log.Printf("✅ 快照流客户端已连接到主题 %s (用户: %s)", client.topic, client.userID)
}

// openFeeds 为主题建立常驻集合订阅
func (manager *StreamManager) openFeeds(topic *streamTopic) {
	if topic.projectID == "" {
		topic.feeds = []*topicFeed{
			openFeed(manager, topic, "projects", collection.NewProjects(manager.store)),
		}
	} else {
		topic.feeds = []*topicFeed{
			openFeed(manager, topic, "scenes", collection.NewScenes(manager.store)),
			openFeed(manager, topic, "generatedScenes", collection.NewGeneratedScenes(manager.store)),
			openFeed(manager, topic, "combinedScenes", collection.NewCombinedScenes(manager.store)),
		}
	}
}

// openFeed 建立单个集合订阅并注册快照回调
func openFeed[T any](manager *StreamManager, topic *streamTopic, kind string, sync *collection.Sync[T]) *topicFeed {
	key := topic.key
	sync.OnSnapshot(func(items []T) {
		manager.broadcastToTopic(key, map[string]interface{}{
			"type":       "snapshot",
			"collection": kind,
			"items":      items,
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	})

	if err := sync.Select(topic.userID, topic.projectID); err != nil {
		log.Printf("❌ 主题 %s 打开 %s 订阅失败: %v", key, kind, err)
		manager.broadcastToTopic(key, map[string]interface{}{
			"type":       "error",
			"collection": kind,
			"error":      err.Error(),
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	}

	return &topicFeed{
		kind:     kind,
		deselect: sync.Deselect,
		current:  func() interface{} { return sync.Snapshot() },
	}
}

// unregisterClient 安全注销客户端，空主题关闭其订阅
func (manager *StreamManager) unregisterClient(client *StreamClient) {
	if client == nil {
		log.Printf("⚠️ 尝试注销 nil 客户端，忽略")
		return
	}

	var orphaned []*topicFeed

	manager.mutex.Lock()
	if topic, exists := manager.topics[client.topic]; exists {
		delete(topic.clients, client.conn)

		// 最后一个客户端离开，回收主题
		if len(topic.clients) == 0 {
			orphaned = topic.feeds
			delete(manager.topics, client.topic)
		}
	}
	manager.mutex.Unlock()

	if !client.IsClosed() {
		client.Close()
	}

	// Deselect 会触发一次空快照回调，必须在锁外执行
	for _, feed := range orphaned {
		feed.deselect()
	}

	log.Printf("🔌 快照流客户端已断开连接 (主题: %s, 用户: %s)", client.topic, client.userID)
}

// cleanupExpiredConnections 清理过期和死连接
func (manager *StreamManager) cleanupExpiredConnections() {
	manager.mutex.RLock()
	expired := make([]*StreamClient, 0)
	for _, topic := range manager.topics {
		for _, client := range topic.clients {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				expired = append(expired, client)
			}
		}
	}
	manager.mutex.RUnlock()

	for _, client := range expired {
		manager.unregisterClient(client)
	}
}

// broadcastToTopic 向指定主题广播消息
func (manager *StreamManager) broadcastToTopic(key string, message map[string]interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("❌ 序列化广播消息失败: %v", err)
		return
	}

	manager.mutex.RLock()
	topic, exists := manager.topics[key]
	if !exists {
		manager.mutex.RUnlock()
		return
	}

	clients := make([]*StreamClient, 0, len(topic.clients))
	for _, client := range topic.clients {
		if !client.IsClosed() {
			clients = append(clients, client)
		}
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msgBytes) {
			// 队列满的连接视为死连接
			client.Close()
		}
	}
}

// shutdown 优雅关闭管理器
func (manager *StreamManager) shutdown() {
	manager.mutex.Lock()
	topics := manager.topics
	manager.topics = make(map[string]*streamTopic)
	manager.mutex.Unlock()

	log.Println("🛑 正在关闭快照流管理器...")

	for _, topic := range topics {
		for _, client := range topic.clients {
			client.Close()
		}
		for _, feed := range topic.feeds {
			feed.deselect()
		}
	}

	log.Println("✅ 快照流管理器已关闭")
}

// GetStatus 获取管理器状态
func (manager *StreamManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	topics := make(map[string]interface{})
	totalConnections := 0

	for key, topic := range manager.topics {
		activeConnections := 0
		users := make([]interface{}, 0)

		for _, client := range topic.clients {
			if client != nil && !client.IsClosed() {
				activeConnections++
				users = append(users, map[string]interface{}{
					"user_id":      client.userID,
					"topic":        client.topic,
					"connected_at": client.createdAt.Format(time.RFC3339),
					"last_ping":    client.lastPing.Format(time.RFC3339),
				})
			}
		}

		topics[key] = map[string]interface{}{
			"client_count": activeConnections,
			"users":        users,
		}
		totalConnections += activeConnections
	}

	return map[string]interface{}{
		"total_topics":      len(manager.topics),
		"total_connections": totalConnections,
		"topics":            topics,
	}
}

// parseTopicKey 解析主题键为用户ID和可选的项目ID
// 合法形式: users/{uid}/projects 和 users/{uid}/projects/{pid}
func parseTopicKey(key string) (userID, projectID string, ok bool) {
	parts := strings.Split(key, "/")
	switch len(parts) {
	case 3:
		if parts[0] != "users" || parts[2] != "projects" || parts[1] == "" {
			return "", "", false
		}
		return parts[1], "", true
	case 4:
		if parts[0] != "users" || parts[2] != "projects" || parts[1] == "" || parts[3] == "" {
			return "", "", false
		}
		return parts[1], parts[3], true
	}
	return "", "", false
}

// ReadJSON 读取JSON消息 - 为了兼容测试和handlers
func (w *WebSocketConnWrapper) ReadJSON(v interface{}) error {
	return w.Conn.ReadJSON(v)
}

// WriteJSON 写入JSON消息 - 为了兼容测试和handlers
func (w *WebSocketConnWrapper) WriteJSON(v interface{}) error {
	return w.Conn.WriteJSON(v)
}
