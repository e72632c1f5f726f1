package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"StemFM/logger"

	"github.com/gorilla/websocket"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPingPeriod = 54 * time.Second
	eventPongWait   = 60 * time.Second
	eventSendBuffer = 64
)

// Event 推送给前端的事件
type Event struct {
	Type string      `json:"type"` // transport / mix / queue
	Data interface{} `json:"data"`
}

// EventHub 播放事件推送中心。所有本机状态变化（播放、混音、队列）
// 都广播给已连接的前端，新连接先收到一轮当前状态重放。
type EventHub struct {
	mu      sync.Mutex
	clients map[*eventClient]bool

	// Replay 在新连接建立时生成当前状态事件
	replay func() []Event
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewEventHub 创建事件推送中心
func NewEventHub(replay func() []Event) *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]bool),
		replay:  replay,
	}
}

// Broadcast 向所有连接广播一条事件，发送缓冲满的连接直接断开
func (h *EventHub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("事件序列化失败", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *EventHub) register(c *eventClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *EventHub) unregister(c *eventClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

// EventsHandler 建立事件推送连接
func (h *EventHub) EventsHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := &eventClient{
		conn: conn,
		send: make(chan []byte, eventSendBuffer),
	}
	h.register(client)

	// 新连接重放当前状态
	if h.replay != nil {
		for _, ev := range h.replay() {
			if data, err := json.Marshal(ev); err == nil {
				client.send <- data
			}
		}
	}

	go client.writePump()
	go client.readPump(h)

	logger.Info("事件推送连接建立", logger.String("remote", r.RemoteAddr))
}

func (c *eventClient) writePump() {
	ticker := time.NewTicker(eventPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只用于探测连接断开，事件流是单向下行的
func (c *eventClient) readPump(h *EventHub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(eventPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
