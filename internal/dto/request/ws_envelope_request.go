package request

import "encoding/json"

// WsEnvelope WebSocket 信封外层结构
// 仅解出 type 字段，payload 由各 handler 按类型二次反序列化
// 使用位置:
//   - internal/gateway/websocket/dispatch.go: Dispatch
type WsEnvelope struct {
	Type string `json:"type"`
}

// ChatMessageRequest 聊天消息请求 (WebSocket)
// {"type":"message","content":"...","attachments":[...]}
type ChatMessageRequest struct {
	Type        string              `json:"type"`
	Content     string              `json:"content"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

// AttachmentRequest 消息附件元数据
// 文件本体已由外部文件服务上传，这里只携带元数据
type AttachmentRequest struct {
	FileName    string `json:"file_name"`
	Path        string `json:"path"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// ReadReceiptRequest 已读回执请求 (WebSocket)
// {"type":"read_receipt","message_id":123}
type ReadReceiptRequest struct {
	Type      string `json:"type"`
	MessageId int64  `json:"message_id"`
}

// StatusUpdateRequest 问诊状态变更请求 (WebSocket)
// {"type":"status_update","status":"completed"}
// status 取值: "active"(医生接诊), "completed"(结束), "cancelled"(取消)
type StatusUpdateRequest struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// ExtendRequest 问诊续费请求 (WebSocket)
// {"type":"extend","payment_proof":"..."}
// 支付凭证的校验委托给外部支付服务
type ExtendRequest struct {
	Type         string `json:"type"`
	PaymentProof string `json:"payment_proof"`
}

// SignalRequest WebRTC 信令请求 (WebSocket)
// type 取值: "offer", "answer", "ice-candidate"
// sdp/candidate 原样转发给对端，服务端不解析内容
type SignalRequest struct {
	Type      string          `json:"type"`
	Sdp       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// CallControlRequest 通话控制请求 (WebSocket)
// type 取值: "call-initiate", "call-accept", "call-end", "call-reject"
// call-initiate 时 call_type 指定 "audio" 或 "video"
type CallControlRequest struct {
	Type     string `json:"type"`
	CallType string `json:"call_type,omitempty"`
}
