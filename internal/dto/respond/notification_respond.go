package respond

import (
	"telemed_server/internal/model"
)

// NotificationRespond 通知响应
// Id 为雪花 ID，客户端按此去重（投递语义为至少一次）
type NotificationRespond struct {
	Id        int64  `json:"id"`
	UserId    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	RelatedId uint   `json:"related_id,omitempty"`
	IsViewed  bool   `json:"is_viewed"`
	CreatedAt string `json:"created_at"`
}

// NewNotificationRespond 从模型构建响应
func NewNotificationRespond(n *model.Notification) NotificationRespond {
	return NotificationRespond{
		Id:        n.Uuid,
		UserId:    n.UserId,
		Title:     n.Title,
		Message:   n.Content,
		Type:      n.Type,
		RelatedId: n.RelatedId,
		IsViewed:  n.IsViewed,
		CreatedAt: n.CreatedAt.Format(timeLayout),
	}
}
