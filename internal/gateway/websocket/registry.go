// Package websocket 实现实时网关
// registry.go
// 核心职责：连接注册表
// 1. 维护 用户 -> 连接集合、会话 -> 连接集合 两类桶
// 2. 所有操作并发安全，原始 map 不对外暴露
// 3. 发送失败视为隐式断开，触发与显式关闭相同的清理，
//    且不影响同一会话其他对端的投递
package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// connEntry 记录单个连接在注册表中的位置，便于一次性从所有桶移除
type connEntry struct {
	userId   string
	sessions map[string]struct{}
}

// Registry 连接注册表
// 进程内唯一可信的"当前谁可达"来源，不做任何持久化；
// 进程重启后所有连接丢失，客户端需重新握手
type Registry struct {
	mu       sync.RWMutex
	users    map[string]map[*Conn]struct{} // userId -> 连接集合（同一用户可有多个标签页）
	sessions map[string]map[*Conn]struct{} // sessionKey -> 参与者连接集合
	entries  map[*Conn]*connEntry
}

// NewRegistry 创建连接注册表
func NewRegistry() *Registry {
	return &Registry{
		users:    make(map[string]map[*Conn]struct{}),
		sessions: make(map[string]map[*Conn]struct{}),
		entries:  make(map[*Conn]*connEntry),
	}
}

// Register 将连接加入用户桶
func (r *Registry) Register(userId string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users[userId] == nil {
		r.users[userId] = make(map[*Conn]struct{})
	}
	r.users[userId][c] = struct{}{}
	r.entries[c] = &connEntry{
		userId:   userId,
		sessions: make(map[string]struct{}),
	}
}

// RegisterToSession 将连接加入会话桶
// 必须先 Register；未注册的连接直接忽略
func (r *Registry) RegisterToSession(sessionKey string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[c]
	if !ok {
		return
	}
	if r.sessions[sessionKey] == nil {
		r.sessions[sessionKey] = make(map[*Conn]struct{})
	}
	r.sessions[sessionKey][c] = struct{}{}
	entry.sessions[sessionKey] = struct{}{}
}

// Unregister 将连接从所有桶移除，幂等
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[c]
	if !ok {
		return
	}
	delete(r.entries, c)
	if conns, ok := r.users[entry.userId]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.users, entry.userId)
		}
	}
	for key := range entry.sessions {
		if conns, ok := r.sessions[key]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(r.sessions, key)
			}
		}
	}
}

// snapshotSession 在读锁内拷贝会话桶的连接列表
func (r *Registry) snapshotSession(sessionKey string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.sessions[sessionKey]))
	for c := range r.sessions[sessionKey] {
		conns = append(conns, c)
	}
	return conns
}

// snapshotUser 在读锁内拷贝用户桶的连接列表
func (r *Registry) snapshotUser(userId string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.users[userId]))
	for c := range r.users[userId] {
		conns = append(conns, c)
	}
	return conns
}

// deliver 投递到一组连接，返回成功数
// 入队失败（缓冲满或连接已关闭）视为隐式断开，异步走统一清理；
// 单个坏连接不阻塞也不影响其余投递
func (r *Registry) deliver(conns []*Conn, payload []byte) int {
	delivered := 0
	for _, c := range conns {
		if c.Send(payload) {
			delivered++
			continue
		}
		zap.L().Warn("连接投递失败，按隐式断开处理",
			zap.String("user_id", c.UserId),
			zap.String("session_key", c.SessionKey),
		)
		go func(dead *Conn) {
			r.Unregister(dead)
			dead.Close()
		}(c)
	}
	return delivered
}

// BroadcastToSession 向会话内全部连接投递，返回成功投递的连接数
func (r *Registry) BroadcastToSession(sessionKey string, payload []byte) int {
	return r.deliver(r.snapshotSession(sessionKey), payload)
}

// SendToUser 向用户的全部连接投递，返回成功投递的连接数
func (r *Registry) SendToUser(userId string, payload []byte) int {
	return r.deliver(r.snapshotUser(userId), payload)
}

// SessionConnCount 返回会话内存活连接数（测试与调试用）
func (r *Registry) SessionConnCount(sessionKey string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionKey])
}

// UserConnCount 返回用户存活连接数（测试与调试用）
func (r *Registry) UserConnCount(userId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userId])
}
