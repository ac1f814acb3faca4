// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	myredis "telemed_server/internal/dao/redis"
	ws "telemed_server/internal/gateway/websocket"
	"telemed_server/internal/service"
)

// Handlers 聚合所有 Handler 实例
// Router 层通过此结构访问各个 Handler
type Handlers struct {
	Consultation *ConsultationHandler
	Notification *NotificationHandler
	Ticket       *TicketHandler
	Ws           *WsHandler
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(svc *service.Services, tickets myredis.TicketStore, gateway *ws.Gateway) *Handlers {
	return &Handlers{
		Consultation: NewConsultationHandler(svc.Consultation),
		Notification: NewNotificationHandler(svc.Notification),
		Ticket:       NewTicketHandler(tickets),
		Ws:           NewWsHandler(gateway),
	}
}
