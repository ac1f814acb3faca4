package respond

import (
	"telemed_server/internal/model"
	"telemed_server/pkg/enum/call/call_status_enum"
	"telemed_server/pkg/enum/call/call_type_enum"
)

// CallRespond 通话信息响应
type CallRespond struct {
	Id             uint   `json:"id"`
	ConsultationId uint   `json:"consultation_id"`
	CallerId       string `json:"caller_id"`
	ReceiverId     string `json:"receiver_id"`
	Type           string `json:"call_type"`
	Status         string `json:"status"`
	AcceptedAt     string `json:"accepted_at,omitempty"`
	EndedAt        string `json:"ended_at,omitempty"`
}

// NewCallRespond 从模型构建响应
func NewCallRespond(c *model.Call) CallRespond {
	rsp := CallRespond{
		Id:             c.ID,
		ConsultationId: c.ConsultationId,
		CallerId:       c.CallerId,
		ReceiverId:     c.ReceiverId,
		Type:           call_type_enum.Name(c.Type),
		Status:         call_status_enum.Name(c.Status),
	}
	if c.AcceptedAt.Valid {
		rsp.AcceptedAt = c.AcceptedAt.Time.Format(timeLayout)
	}
	if c.EndedAt.Valid {
		rsp.EndedAt = c.EndedAt.Time.Format(timeLayout)
	}
	return rsp
}
