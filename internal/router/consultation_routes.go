// Package router 提供 HTTP 路由注册
// 本文件定义问诊相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterConsultationRoutes 注册问诊相关路由（需要认证）
// 发起与查询走 REST，会话内操作走 WebSocket 信封
func (rt *Router) RegisterConsultationRoutes(rg *gin.RouterGroup) {
	consultationGroup := rg.Group("/consultation")
	{
		consultationGroup.POST("", rt.handlers.Consultation.CreateHandler)              // 患者发起问诊
		consultationGroup.GET("/:id", rt.handlers.Consultation.GetHandler)              // 问诊详情
		consultationGroup.GET("/:id/messages", rt.handlers.Consultation.MessagesHandler) // 历史消息
	}
}
