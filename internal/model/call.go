// Package model 定义数据库实体模型
// 本文件定义通话模型（仅信令，不含媒体流）
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// Call 通话模型
// 对应数据库 call 表
// 同一问诊同一时刻只允许存在一个未结束的通话，由 CallService 在发起时校验
type Call struct {
	gorm.Model

	// ConsultationId 所属问诊 ID
	ConsultationId uint `gorm:"column:consultation_id;index;not null;comment:问诊id"`

	// CallerId 主叫 UUID
	CallerId string `gorm:"column:caller_id;type:char(20);not null;comment:主叫uuid"`

	// ReceiverId 被叫 UUID
	ReceiverId string `gorm:"column:receiver_id;type:char(20);not null;comment:被叫uuid"`

	// Type 通话类型
	// 0=语音, 1=视频，参见 pkg/enum/call/call_type_enum
	Type int8 `gorm:"column:type;not null;comment:通话类型，0.语音，1.视频"`

	// Status 通话状态
	// 0=已发起, 1=通话中, 2=已结束, 3=已拒绝
	// 参见 pkg/enum/call/call_status_enum
	Status int8 `gorm:"column:status;not null;default:0;comment:状态，0.已发起，1.通话中，2.已结束，3.已拒绝"`

	// Version 乐观锁版本号
	Version int `gorm:"column:version;not null;default:0;comment:乐观锁版本号"`

	// AcceptedAt 接听时间
	AcceptedAt sql.NullTime `gorm:"column:accepted_at;comment:接听时间"`

	// EndedAt 结束时间
	EndedAt sql.NullTime `gorm:"column:ended_at;comment:结束时间"`
}

// TableName 指定表名
func (Call) TableName() string {
	return "call"
}

// Counterpart 返回通话对端用户 UUID，非参与者返回空串
func (c *Call) Counterpart(userId string) string {
	switch userId {
	case c.CallerId:
		return c.ReceiverId
	case c.ReceiverId:
		return c.CallerId
	}
	return ""
}

// IsParticipant 判断用户是否为通话参与者
func (c *Call) IsParticipant(userId string) bool {
	return userId == c.CallerId || userId == c.ReceiverId
}
