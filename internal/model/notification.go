// Package model 定义数据库实体模型
// 本文件定义通知模型，投递语义为至少一次
package model

import (
	"gorm.io/gorm"
)

// Notification 通知模型
// 对应数据库 notification 表
// 先落库后投递；投递失败时记录保留，用户下次登录拉取
type Notification struct {
	gorm.Model

	// Uuid 通知唯一标识（雪花 ID），前端按此去重
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:通知雪花ID"`

	// UserId 接收用户 UUID
	UserId string `gorm:"column:user_id;index;type:char(20);not null;comment:接收用户uuid"`

	// Title 通知标题
	Title string `gorm:"column:title;type:varchar(100);not null;comment:标题"`

	// Content 通知正文
	Content string `gorm:"column:content;type:TEXT;comment:正文"`

	// Type 通知类型，参见 pkg/enum/notification/notification_type_enum
	Type string `gorm:"column:type;index;type:char(30);not null;comment:通知类型"`

	// RelatedId 关联业务 ID（问诊或通话的主键），可为 0
	RelatedId uint `gorm:"column:related_id;comment:关联业务id"`

	// IsViewed 是否已读
	// 已读的通知不再重推
	IsViewed bool `gorm:"column:is_viewed;not null;default:false;comment:是否已读"`
}

// TableName 指定表名
func (Notification) TableName() string {
	return "notification"
}
