package respond

import (
	"telemed_server/internal/model"
	"telemed_server/pkg/enum/user/sender_role_enum"
)

// MessageRespond 消息响应
// Id 为雪花 ID 字符串化前的 int64，前端按此去重
type MessageRespond struct {
	Id             int64               `json:"id"`
	ConsultationId uint                `json:"consultation_id"`
	SenderId       string              `json:"sender_id"`
	SenderRole     string              `json:"sender_role"`
	Content        string              `json:"content"`
	SentAt         string              `json:"sent_at"`
	IsRead         bool                `json:"is_read"`
	Attachments    []AttachmentRespond `json:"attachments,omitempty"`
}

// AttachmentRespond 附件响应
type AttachmentRespond struct {
	FileName    string `json:"file_name"`
	Path        string `json:"path"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// NewMessageRespond 从模型构建响应
func NewMessageRespond(m *model.Message) MessageRespond {
	rsp := MessageRespond{
		Id:             m.Uuid,
		ConsultationId: m.ConsultationId,
		SenderId:       m.SenderId,
		SenderRole:     sender_role_enum.Name(m.SenderRole),
		Content:        m.Content,
		SentAt:         m.SentAt.Format(timeLayout),
		IsRead:         m.IsRead,
	}
	for _, a := range m.Attachments {
		rsp.Attachments = append(rsp.Attachments, AttachmentRespond{
			FileName:    a.FileName,
			Path:        a.Path,
			FileSize:    a.FileSize,
			ContentType: a.ContentType,
		})
	}
	return rsp
}
