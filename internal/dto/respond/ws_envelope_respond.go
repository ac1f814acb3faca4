package respond

// 服务端下行 WebSocket 信封
// 所有信封均带 type 字段，前端按 type 分发

// MessageEnvelope 新消息信封
// {"type":"message","message":{...}}
type MessageEnvelope struct {
	Type    string         `json:"type"` // 恒为 "message"
	Message MessageRespond `json:"message"`
}

// NewMessageEnvelope 构建新消息信封
func NewMessageEnvelope(m MessageRespond) MessageEnvelope {
	return MessageEnvelope{Type: "message", Message: m}
}

// StatusUpdateEnvelope 问诊状态变更信封
// {"type":"status_update","consultation":{...},"auto_completed":true}
// AutoCompleted 仅在配额用尽自动结束时为 true，前端据此区分提示文案
type StatusUpdateEnvelope struct {
	Type          string              `json:"type"` // 恒为 "status_update"
	Consultation  ConsultationRespond `json:"consultation"`
	AutoCompleted bool                `json:"auto_completed,omitempty"`
}

// NewStatusUpdateEnvelope 构建状态变更信封
func NewStatusUpdateEnvelope(c ConsultationRespond, autoCompleted bool) StatusUpdateEnvelope {
	return StatusUpdateEnvelope{Type: "status_update", Consultation: c, AutoCompleted: autoCompleted}
}

// ReadReceiptEnvelope 已读回执信封
// {"type":"read_receipt","message_id":123,"reader_id":"U..."}
type ReadReceiptEnvelope struct {
	Type      string `json:"type"` // 恒为 "read_receipt"
	MessageId int64  `json:"message_id"`
	ReaderId  string `json:"reader_id"`
}

// CallEventEnvelope 通话事件信封
// type 取值: "call-initiated", "call-accepted", "call-ended", "call-rejected"
// Call 仅在 call-initiated 时携带完整通话记录，供主叫拿到通话 id
type CallEventEnvelope struct {
	Type   string       `json:"type"`
	CallId uint         `json:"call_id"`
	Call   *CallRespond `json:"call,omitempty"`
}

// NewCallEventEnvelope 构建通话事件信封
func NewCallEventEnvelope(eventType string, callId uint) CallEventEnvelope {
	return CallEventEnvelope{Type: eventType, CallId: callId}
}

// NewNotificationEnvelope 新通知信封
// {"type":"new_notification","notification":{...}}
type NewNotificationEnvelope struct {
	Type         string              `json:"type"` // 恒为 "new_notification"
	Notification NotificationRespond `json:"notification"`
}

// ErrorEnvelope 错误信封，仅发给发起方
// {"type":"error","code":1021,"message":"..."}
type ErrorEnvelope struct {
	Type    string `json:"type"` // 恒为 "error"
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PongEnvelope 心跳响应信封
type PongEnvelope struct {
	Type string `json:"type"` // 恒为 "pong"
}

// ParticipantLeftEnvelope 参与者离开信封
// 连接清理后广播给会话内剩余参与者
type ParticipantLeftEnvelope struct {
	Type   string `json:"type"` // 恒为 "participant_left"
	UserId string `json:"user_id"`
}

// NewParticipantLeftEnvelope 构建参与者离开信封
func NewParticipantLeftEnvelope(userId string) ParticipantLeftEnvelope {
	return ParticipantLeftEnvelope{Type: "participant_left", UserId: userId}
}

// NewErrorEnvelope 构建错误信封
func NewErrorEnvelope(code int, message string) ErrorEnvelope {
	return ErrorEnvelope{Type: "error", Code: code, Message: message}
}
