package api

import (
	"testing"
	"time"
)

func newIdleStreamClient(buffer int) *StreamClient {
	return &StreamClient{
		topic:     "users/u1/projects",
		userID:    "u1",
		send:      make(chan []byte, buffer),
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}
}

func TestSendMessageOnClosedChannel(t *testing.T) {
	client := newIdleStreamClient(1)

	// 写协程在发送方检查关闭标志之后关闭通道的窗口：
	// 通道已关闭但标志尚未翻转，发送必须按丢弃处理而不是 panic
	close(client.send)

	if err := client.SendMessage(map[string]interface{}{"type": "snapshot"}); err != nil {
		t.Errorf("向已关闭通道的投递应按丢弃处理: %v", err)
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	client := newIdleStreamClient(1)

	if !client.enqueue([]byte("一")) {
		t.Fatal("队列未满时投递应成功")
	}
	if client.enqueue([]byte("二")) {
		t.Error("队列已满时应返回 false")
	}
}

func TestEnqueueClosedFlagShortCircuits(t *testing.T) {
	client := newIdleStreamClient(1)
	client.closed = 1

	if !client.enqueue([]byte("一")) {
		t.Error("已关闭的客户端投递应直接按丢弃处理")
	}
	if len(client.send) != 0 {
		t.Error("已关闭的客户端不应入队任何消息")
	}
}
