// Package notification_type_enum 定义通知类型枚举
package notification_type_enum

// 通知类型，直接使用协议字符串作为取值
const (
	NewConsultation       = "new_consultation"       // 新问诊创建
	ConsultationStarted   = "consultation_started"   // 医生接诊
	ConsultationCompleted = "consultation_completed" // 问诊结束（含自动结束）
	ConsultationCancelled = "consultation_cancelled" // 问诊取消
	NewMessage            = "new_message"            // 新消息
	CallInitiated         = "call_initiated"         // 来电
)

// important 定义需要带退避重试投递的通知类型集合
// 这些类型承载会话生命周期，离线用户重连后也必须能感知
var important = map[string]bool{
	NewConsultation:       true,
	ConsultationStarted:   true,
	ConsultationCompleted: true,
}

// IsImportant 判断通知类型是否需要重试投递
func IsImportant(t string) bool {
	return important[t]
}
