// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 与连接票据相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterTicketRoutes 注册连接票据路由（需要认证）
func (rt *Router) RegisterTicketRoutes(rg *gin.RouterGroup) {
	rg.POST("/ws/ticket", rt.handlers.Ticket.IssueHandler) // 签发一次性连接票据
}

// RegisterWebSocketRoutes 注册 WebSocket 握手路由
// 握手鉴权由票据完成，不挂 JWT 中间件
// 请求示例: ws://host:port/ws/consultation/42?token=xxx
func (rt *Router) RegisterWebSocketRoutes(r *gin.Engine) {
	r.GET("/ws/:kind/:id", rt.handlers.Ws.ConnectHandler)
}
