// Package handler 提供 HTTP 请求处理器
// 本文件是 WebSocket 握手入口，实际升级与鉴权在网关内完成
package handler

import (
	ws "telemed_server/internal/gateway/websocket"

	"github.com/gin-gonic/gin"
)

// WsHandler WebSocket 握手处理器
type WsHandler struct {
	gateway *ws.Gateway
}

// NewWsHandler 创建 WebSocket 握手处理器
func NewWsHandler(gateway *ws.Gateway) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// ConnectHandler 建立实时连接
// GET /ws/:kind/:id?token=xxx
// kind 为 "consultation" 或 "call"，token 为一次性连接票据
func (h *WsHandler) ConnectHandler(c *gin.Context) {
	h.gateway.HandleConnect(c)
}
