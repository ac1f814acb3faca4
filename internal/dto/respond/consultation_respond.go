package respond

import (
	"telemed_server/internal/model"
	"telemed_server/pkg/enum/consultation/consultation_status_enum"
)

// timeLayout 对前端统一使用的时间格式
const timeLayout = "2006-01-02 15:04:05"

// ConsultationRespond 问诊信息响应
// 使用位置:
//   - internal/service/consultation/service.go: 状态广播
//   - internal/handler/consultation_handler.go
type ConsultationRespond struct {
	Id              uint   `json:"id"`
	PatientId       string `json:"patient_id"`
	DoctorId        string `json:"doctor_id"`
	Status          string `json:"status"`
	MessageLimit    int    `json:"message_limit"`
	MessageCount    int    `json:"message_count"`
	CreatedAt       string `json:"created_at"`
	StartedAt       string `json:"started_at,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
	CompletedReason string `json:"completed_reason,omitempty"`
}

// NewConsultationRespond 从模型构建响应
func NewConsultationRespond(c *model.Consultation) ConsultationRespond {
	rsp := ConsultationRespond{
		Id:              c.ID,
		PatientId:       c.PatientId,
		DoctorId:        c.DoctorId,
		Status:          consultation_status_enum.Name(c.Status),
		MessageLimit:    c.MessageLimit,
		MessageCount:    c.MessageCount,
		CreatedAt:       c.CreatedAt.Format(timeLayout),
		CompletedReason: c.CompletedReason,
	}
	if c.StartedAt.Valid {
		rsp.StartedAt = c.StartedAt.Time.Format(timeLayout)
	}
	if c.CompletedAt.Valid {
		rsp.CompletedAt = c.CompletedAt.Time.Format(timeLayout)
	}
	return rsp
}
