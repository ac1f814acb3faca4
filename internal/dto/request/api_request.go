package request

// CreateConsultationRequest 创建问诊请求
// 使用位置:
//   - internal/handler/consultation_handler.go: CreateConsultationHandler
type CreateConsultationRequest struct {
	DoctorId string `json:"doctor_id" binding:"required"`
}

// MarkNotificationsViewedRequest 批量标记通知已读请求
// 使用位置:
//   - internal/handler/notification_handler.go: MarkViewedHandler
type MarkNotificationsViewedRequest struct {
	Uuids []int64 `json:"uuids" binding:"required,min=1"`
}
