/*
 * @author: amolani
 * @date: 2026.07.20
 * @description: 作业进度WebSocket推送中心
 * @func: 订阅者接入、状态事件广播；广播失败绝不阻塞状态变更
 */
package ws

import (
	"net/http"
	"sync"

	"linbomaster/internal/pkg/logger"

	"github.com/gorilla/websocket"
)

// 进度事件类型
const (
	EventOperationRunning   = "operation.running"
	EventOperationProgress  = "operation.progress"
	EventOperationCompleted = "operation.completed"
	EventSessionRunning     = "session.running"
	EventSessionCompleted   = "session.completed"
	EventSessionFailed      = "session.failed"
)

// ProgressEvent 推送给订阅者的进度事件
type ProgressEvent struct {
	Type        string `json:"type"`                   // 事件类型
	OperationID string `json:"operation_id"`           // 作业ID
	SessionID   string `json:"session_id,omitempty"`   // 会话ID(会话级事件)
	Hostname    string `json:"hostname,omitempty"`     // 主机名(会话级事件)
	Status      string `json:"status"`                 // 当前状态
	Progress    int    `json:"progress"`               // 进度 0-100
	Reason      string `json:"reason,omitempty"`       // 失败原因(session.failed)
}

// subscriber 单个订阅连接
// 事件经由带缓冲channel交给专属写协程，写不动的慢订阅者直接丢弃
type subscriber struct {
	conn *websocket.Conn
	send chan ProgressEvent
}

// Hub 进度推送中心
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	maxConns int
}

// NewHub 创建进度推送中心
func NewHub(readBufferSize, writeBufferSize, maxConns int, checkOrigin bool) *Hub {
	if readBufferSize <= 0 {
		readBufferSize = 1024
	}
	if writeBufferSize <= 0 {
		writeBufferSize = 1024
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				if checkOrigin {
					return r.Header.Get("Origin") == "" || r.Host == r.Header.Get("Origin")
				}
				return true
			},
		},
		subs:     make(map[*subscriber]struct{}),
		maxConns: maxConns,
	}
}

// HandleSubscribe 升级HTTP连接为进度订阅连接
func (h *Hub) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	full := h.maxConns > 0 && len(h.subs) >= h.maxConns
	h.mu.RUnlock()
	if full {
		http.Error(w, "too many subscribers", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("progress ws upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan ProgressEvent, 64),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	logger.Infof("progress subscriber connected, total=%d", count)

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

// Publish 广播一个进度事件
// 不等待任何订阅者确认；订阅者缓冲已满时事件被丢弃
func (h *Hub) Publish(event ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.send <- event:
		default:
			// 慢订阅者，丢弃本条事件
		}
	}
}

// SubscriberCount 当前订阅者数量
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close 关闭所有订阅连接
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		close(sub.send)
		delete(h.subs, sub)
	}
}

// writeLoop 订阅者写协程
func (h *Hub) writeLoop(sub *subscriber) {
	for event := range sub.send {
		if err := sub.conn.WriteJSON(event); err != nil {
			h.drop(sub)
			return
		}
	}
	_ = sub.conn.Close()
}

// readLoop 订阅者读协程
// 订阅方向只出不进，读循环仅用于感知连接关闭
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.drop(sub)
			return
		}
	}
}

// drop 摘除订阅者并关闭连接
func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	count := len(h.subs)
	h.mu.Unlock()

	_ = sub.conn.Close()
	logger.Infof("progress subscriber disconnected, total=%d", count)
}
