// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 连接票据的签发
package handler

import (
	"time"

	"telemed_server/internal/config"
	myredis "telemed_server/internal/dao/redis"

	"github.com/gin-gonic/gin"
)

// TicketHandler 连接票据处理器
type TicketHandler struct {
	tickets myredis.TicketStore
}

// NewTicketHandler 创建连接票据处理器
func NewTicketHandler(tickets myredis.TicketStore) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// IssueHandler 签发一次性 WebSocket 连接票据
// POST /api/ws/ticket
// 票据绑定当前登录用户，兑现一次后立即失效
func (h *TicketHandler) IssueHandler(c *gin.Context) {
	userId := c.GetString("user_id")
	role := c.GetString("role")

	ttl := config.GetConfig().WebsocketConfig.TicketExpiry * time.Second
	token, err := h.tickets.Issue(c.Request.Context(), userId, role, ttl)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{
		"ticket":         token,
		"expires_second": int(ttl.Seconds()),
	})
}
