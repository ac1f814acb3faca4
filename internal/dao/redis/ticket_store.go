// Package redis 提供 WebSocket 连接凭证存储
// 凭证为一次性、短时效（约 5 分钟）的随机令牌，
// 兑现通过 GETDEL 完成，天然保证单次使用
package redis

import (
	"context"
	"encoding/json"
	"time"

	"telemed_server/pkg/errorx"
	"telemed_server/pkg/util/random"
)

// ticketKeyPrefix WebSocket 连接凭证的键前缀
const ticketKeyPrefix = "ws_ticket_"

// TicketIdentity 凭证兑现后得到的身份信息
type TicketIdentity struct {
	UserId string `json:"user_id"`
	Role   string `json:"role"` // "patient" 或 "doctor"
}

// TicketStore WebSocket 连接凭证存储接口
// 即认证网关（AuthGate）依赖的外部凭证仓库
type TicketStore interface {
	// Issue 为用户签发一张一次性连接凭证，返回凭证令牌
	Issue(ctx context.Context, userId, role string, ttl time.Duration) (string, error)
	// Resolve 兑现凭证并作废
	// 凭证不存在或已被兑现时返回 CodeUnauthorized
	Resolve(ctx context.Context, token string) (*TicketIdentity, error)
}

// redisTicketStore 基于 Redis 的凭证存储实现
type redisTicketStore struct {
	cache CacheService
}

// NewTicketStore 创建凭证存储
func NewTicketStore(cache CacheService) TicketStore {
	return &redisTicketStore{cache: cache}
}

// Issue 签发一次性连接凭证
func (s *redisTicketStore) Issue(ctx context.Context, userId, role string, ttl time.Duration) (string, error) {
	token := "T" + random.GetNowAndLenRandomString(20)
	payload, err := json.Marshal(TicketIdentity{UserId: userId, Role: role})
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeServerBusy, "序列化凭证身份失败")
	}
	if err := s.cache.Set(ctx, ticketKeyPrefix+token, string(payload), ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve 兑现并作废凭证
func (s *redisTicketStore) Resolve(ctx context.Context, token string) (*TicketIdentity, error) {
	if token == "" {
		return nil, errorx.ErrUnauthorized
	}
	payload, err := s.cache.GetDel(ctx, ticketKeyPrefix+token)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.ErrUnauthorized
		}
		return nil, err
	}
	var identity TicketIdentity
	if err := json.Unmarshal([]byte(payload), &identity); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUnauthorized, "凭证内容无效")
	}
	return &identity, nil
}

// GetTicketStore 获取全局凭证存储实例
func GetTicketStore() TicketStore {
	return NewTicketStore(cacheService)
}
