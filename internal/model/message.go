// Package model 定义数据库实体模型
// 本文件定义问诊消息模型及其附件
package model

import (
	"time"

	"gorm.io/gorm"
)

// Message 消息模型
// 对应数据库 message 表
// 仅在所属问诊处于进行中状态时可创建
type Message struct {
	gorm.Model

	// Uuid 消息唯一标识
	// 使用雪花算法生成的 int64 类型 ID，前端按此去重
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// ConsultationId 所属问诊 ID
	ConsultationId uint `gorm:"column:consultation_id;index;not null;comment:问诊id"`

	// SenderId 发送者 UUID
	SenderId string `gorm:"column:sender_id;index;type:char(20);not null;comment:发送者uuid"`

	// SenderRole 发送者角色
	// 0=患者, 1=医生，参见 pkg/enum/user/sender_role_enum
	SenderRole int8 `gorm:"column:sender_role;not null;comment:发送者角色，0.患者，1.医生"`

	// Content 消息文本内容
	Content string `gorm:"column:content;type:TEXT;comment:消息内容"`

	// SentAt 发送时间
	// 在持久化时赋值；并发重试下与客户端发出时间可能存在微小偏差
	SentAt time.Time `gorm:"column:sent_at;not null;comment:发送时间"`

	// IsRead 是否已读
	IsRead bool `gorm:"column:is_read;not null;default:false;comment:是否已读"`

	// Attachments 附件列表，存储于 attachment 表
	Attachments []Attachment `gorm:"foreignKey:MessageUuid;references:Uuid"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// Attachment 消息附件模型
// 文件本体的上传存储由外部文件服务负责，这里只记录元数据
type Attachment struct {
	gorm.Model

	// MessageUuid 所属消息雪花 ID
	MessageUuid int64 `gorm:"column:message_uuid;index;type:bigint;not null;comment:消息雪花ID"`

	// FileName 文件名
	FileName string `gorm:"column:file_name;type:varchar(100);not null;comment:文件名"`

	// Path 文件存储路径（外部文件服务返回）
	Path string `gorm:"column:path;type:varchar(255);not null;comment:文件路径"`

	// FileSize 文件大小（字节）
	FileSize int64 `gorm:"column:file_size;not null;comment:文件大小"`

	// ContentType 文件 MIME 类型，如 "image/jpeg"
	ContentType string `gorm:"column:content_type;type:char(50);comment:文件类型"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachment"
}
