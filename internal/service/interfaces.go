// Package service 业务逻辑层
// interfaces.go 定义各业务服务接口与依赖的外部协作者接口，
// 网关与 handler 只依赖接口，便于测试时替换桩实现
package service

import (
	"context"
	"fmt"

	"telemed_server/internal/dto/request"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/model"
)

// ConsultationSessionKey 问诊会话桶键
func ConsultationSessionKey(id uint) string {
	return fmt.Sprintf("consultation:%d", id)
}

// CallSessionKey 通话会话桶键
func CallSessionKey(id uint) string {
	return fmt.Sprintf("call:%d", id)
}

// Broadcaster 实时投递出口，由网关连接注册表实现
// 返回值为成功投递的连接数
type Broadcaster interface {
	BroadcastToSession(sessionKey string, payload []byte) int
	SendToUser(userId string, payload []byte) int
}

// EventPublisher 会话事件总线出口，多实例部署时跨实例转发广播
// 单实例（channel 模式）下为 nil，服务层需判空
type EventPublisher interface {
	Publish(sessionKey, userId string, payload []byte)
}

// PaymentVerifier 支付凭证校验协作者
type PaymentVerifier interface {
	Verify(ctx context.Context, proof string) (bool, error)
}

// ConsultationService 问诊会话服务
type ConsultationService interface {
	// Create 患者发起问诊，初始 pending
	Create(patientId, doctorId string) (*respond.ConsultationRespond, error)
	// GetForParticipant 加载问诊并校验 userId 为参与者
	GetForParticipant(id uint, userId string) (*model.Consultation, error)
	// Start 医生接诊，pending -> active
	Start(id uint, userId string) error
	// PostMessage 发送聊天消息，扣减配额，必要时触发自动完结
	PostMessage(id uint, senderId string, req *request.ChatMessageRequest) (*respond.MessageRespond, error)
	// Complete 手动完结，幂等
	Complete(id uint, userId string) error
	// Cancel 取消问诊
	Cancel(id uint, userId string) error
	// Extend 校验支付凭证后追加消息配额
	Extend(id uint, userId, paymentProof string) error
	// GetMessages 拉取历史消息
	GetMessages(id uint, userId string) ([]respond.MessageRespond, error)
	// MarkMessageRead 已读回执
	MarkMessageRead(id uint, readerId string, messageUuid int64) error
}

// CallService 音视频通话服务，媒体协商内容只做透明转发
type CallService interface {
	// Initiate 在问诊内发起通话
	Initiate(consultationId uint, callerId, callType string) (*respond.CallRespond, error)
	// GetForParticipant 加载通话并校验 userId 为参与者
	GetForParticipant(id uint, userId string) (*model.Call, error)
	// Accept 被叫接听，initiated -> active
	Accept(id uint, userId string) error
	// End 挂断，幂等
	End(id uint, userId string) error
	// Reject 被叫拒接
	Reject(id uint, userId string) error
	// Relay 将信令载荷原样转发给对端，对端不可达返回 CodePeerUnreachable
	Relay(id uint, senderId string, payload []byte) error
}

// NotificationService 通知分发服务
type NotificationService interface {
	// Notify 持久化通知并尝试实时投递，重要类型投递失败会后台重试
	Notify(userId, title, content, notifyType string, relatedId uint) (*respond.NotificationRespond, error)
	// GetUnviewed 拉取未读通知
	GetUnviewed(userId string) ([]respond.NotificationRespond, error)
	// MarkViewed 批量标记已读
	MarkViewed(userId string, uuids []int64) error
	// Close 停止所有后台重试任务并等待退出
	Close()
}
