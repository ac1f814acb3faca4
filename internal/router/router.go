// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"telemed_server/internal/handler"
	"telemed_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// REST 接口统一挂在 /api 下并要求 JWT 认证；
// WebSocket 握手不经过 JWT 中间件，鉴权由一次性票据完成
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api", middleware.JWTAuth())
	{
		rt.RegisterConsultationRoutes(api)
		rt.RegisterNotificationRoutes(api)
		rt.RegisterTicketRoutes(api)
	}
	rt.RegisterWebSocketRoutes(r)
}
