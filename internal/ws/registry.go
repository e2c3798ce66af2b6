// Package ws 管理已连接的 WebSocket 客户端会话和行情扇出
package ws

import (
	"errors"
	"sync"
	"time"

	"crypto-trading-panel/internal/metrics"
	"crypto-trading-panel/internal/model"
	"crypto-trading-panel/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrRegistryFull 表示在线客户端已达上限，调用方应当直接关闭底层连接
var ErrRegistryFull = errors.New("ws registry: client cap reached")

// session 保存单个连接的元数据
// subscriptions 为空表示接收全部 Symbol
type session struct {
	conn          *websocket.Conn
	connectedAt   time.Time
	lastSeen      time.Time
	tokenValid    bool
	subscriptions map[string]struct{}
}

// Registry 是进程内唯一的 WebSocket 客户端注册表
// 死连接采用惰性清理：只在向它发送失败时移除，没有主动心跳扫描
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*session
	maxClients int
}

// NewRegistry 构造注册表，maxClients <= 0 表示不设上限
func NewRegistry(maxClients int) *Registry {
	return &Registry{
		sessions:   make(map[string]*session),
		maxClients: maxClients,
	}
}

// Register 登记一个新连接并返回会话 ID
// 超过上限时返回 ErrRegistryFull，连接的关闭由调用方负责
func (r *Registry) Register(conn *websocket.Conn, tokenValid bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxClients > 0 && len(r.sessions) >= r.maxClients {
		return "", ErrRegistryFull
	}

	id := service.NewSessionID()
	now := time.Now()
	r.sessions[id] = &session{
		conn:          conn,
		connectedAt:   now,
		lastSeen:      now,
		tokenValid:    tokenValid,
		subscriptions: make(map[string]struct{}),
	}
	metrics.WSClients.Set(float64(len(r.sessions)))

	service.Logger.Info("WS client registered",
		zap.String("ClientId", id), zap.Int("Online", len(r.sessions)))
	return id, nil
}

// Remove 注销会话并关闭底层连接，对未知 ID 幂等
func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(clientID)
}

func (r *Registry) removeLocked(clientID string) {
	sess, ok := r.sessions[clientID]
	if !ok {
		return
	}
	_ = sess.conn.Close()
	delete(r.sessions, clientID)
	metrics.WSClients.Set(float64(len(r.sessions)))

	service.Logger.Info("WS client removed",
		zap.String("ClientId", clientID), zap.Int("Online", len(r.sessions)))
}

// Subscribe 覆盖式设置会话的订阅集合，空列表恢复为接收全部
func (r *Registry) Subscribe(clientID string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[clientID]
	if !ok {
		return
	}
	sess.subscriptions = make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		sess.subscriptions[symbol] = struct{}{}
	}
	sess.lastSeen = time.Now()
}

// SendTo 向单个会话发送一条 JSON 消息
// 发送失败视为断连，当场移除会话并返回 false
func (r *Registry) SendTo(clientID string, msg interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[clientID]
	if !ok {
		return false
	}
	if err := sess.conn.WriteJSON(msg); err != nil {
		service.Logger.Warn("WS send failed, removing client",
			zap.String("ClientId", clientID), zap.Error(err))
		r.removeLocked(clientID)
		return false
	}
	sess.lastSeen = time.Now()
	return true
}

// Broadcast 把一批合并后的 Tick 扇出给所有会话
// 有订阅集合的会话只收订阅内的 Symbol，过滤后为空就整批跳过；
// 发送出错的会话按断连处理
func (r *Registry) Broadcast(ticks []model.TickMessage) {
	if len(ticks) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []string
	for clientID, sess := range r.sessions {
		toSend := ticks
		if len(sess.subscriptions) > 0 {
			toSend = make([]model.TickMessage, 0, len(ticks))
			for _, tick := range ticks {
				if _, ok := sess.subscriptions[tick.Symbol]; ok {
					toSend = append(toSend, tick)
				}
			}
			if len(toSend) == 0 {
				continue // 这批行情与该客户端无关
			}
		}

		if err := sess.conn.WriteJSON(toSend); err != nil {
			dead = append(dead, clientID)
			continue
		}
		sess.lastSeen = time.Now()
	}

	for _, clientID := range dead {
		service.Logger.Warn("WS broadcast failed, removing client", zap.String("ClientId", clientID))
		r.removeLocked(clientID)
	}
}

// Count 返回当前在线会话数
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
