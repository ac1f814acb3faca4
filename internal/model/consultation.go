// Package model 定义数据库实体模型
// 本文件定义问诊模型，是整个实时子系统的核心共享状态
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// Consultation 问诊模型
// 对应数据库 consultation 表
// 一次问诊是一位患者和一位医生之间有消息配额、有显式生命周期的聊天
type Consultation struct {
	gorm.Model

	// PatientId 患者 UUID
	PatientId string `gorm:"column:patient_id;index;type:char(20);not null;comment:患者uuid"`

	// DoctorId 医生 UUID
	DoctorId string `gorm:"column:doctor_id;index;type:char(20);not null;comment:医生uuid"`

	// Status 问诊状态
	// 0=待接诊, 1=进行中, 2=已完成, 3=已取消
	// 参见 pkg/enum/consultation/consultation_status_enum
	Status int8 `gorm:"column:status;not null;default:0;comment:状态，0.待接诊，1.进行中，2.已完成，3.已取消"`

	// MessageLimit 消息配额
	// 达到配额且最后一条消息来自患者时问诊自动结束
	MessageLimit int `gorm:"column:message_limit;not null;default:30;comment:消息配额"`

	// MessageCount 已发送消息数
	// 不变式: MessageCount <= MessageLimit
	// 必须通过乐观锁（Version 校验）递增，禁止直接 UPDATE
	MessageCount int `gorm:"column:message_count;not null;default:0;comment:已发送消息数"`

	// Version 乐观锁版本号
	// 每次写入递增，WHERE id=? AND version=? 校验失败视为写冲突
	Version int `gorm:"column:version;not null;default:0;comment:乐观锁版本号"`

	// StartedAt 接诊时间
	StartedAt sql.NullTime `gorm:"column:started_at;comment:接诊时间"`

	// CompletedAt 结束时间
	CompletedAt sql.NullTime `gorm:"column:completed_at;comment:结束时间"`

	// CompletedReason 结束原因
	// "manual" 参与者主动结束，"limit_reached" 配额用尽自动结束
	CompletedReason string `gorm:"column:completed_reason;type:char(20);comment:结束原因"`
}

// TableName 指定表名
func (Consultation) TableName() string {
	return "consultation"
}

// ParticipantRole 返回用户在本次问诊中的角色
// 返回 (role, true)；非参与者返回 (0, false)
func (c *Consultation) ParticipantRole(userId string) (int8, bool) {
	switch userId {
	case c.PatientId:
		return 0, true // sender_role_enum.PATIENT
	case c.DoctorId:
		return 1, true // sender_role_enum.DOCTOR
	}
	return 0, false
}

// Counterpart 返回对端用户 UUID，非参与者返回空串
func (c *Consultation) Counterpart(userId string) string {
	switch userId {
	case c.PatientId:
		return c.DoctorId
	case c.DoctorId:
		return c.PatientId
	}
	return ""
}
