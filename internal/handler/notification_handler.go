// Package handler 提供 HTTP 请求处理器
// 本文件处理通知的拉取与已读标记，离线用户重连后靠这两个接口补收
package handler

import (
	"telemed_server/internal/dto/request"
	"telemed_server/internal/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	notifications service.NotificationService
}

// NewNotificationHandler 创建通知处理器
func NewNotificationHandler(notifications service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// UnreadHandler 拉取当前用户的未读通知
// GET /api/notification/unread
func (h *NotificationHandler) UnreadHandler(c *gin.Context) {
	list, err := h.notifications.GetUnviewed(c.GetString("user_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, list)
}

// MarkViewedHandler 批量标记通知已读
// POST /api/notification/read
// 请求体: request.MarkNotificationsViewedRequest
func (h *NotificationHandler) MarkViewedHandler(c *gin.Context) {
	var req request.MarkNotificationsViewedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.notifications.MarkViewed(c.GetString("user_id"), req.Uuids); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
