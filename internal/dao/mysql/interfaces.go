// Package mysql 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package mysql

import (
	"errors"

	"telemed_server/internal/model"
	"telemed_server/pkg/errorx"

	"gorm.io/gorm"
)

// ==================== 错误包装辅助函数 ====================

// wrapDBError 包装数据库错误
// 根据错误类型返回不同的错误码：
//   - ErrRecordNotFound -> CodeNotFound
//   - 其他错误 -> CodeDBError
func wrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrap(err, errorx.CodeNotFound, msg)
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

// wrapDBErrorf 包装数据库错误（支持格式化消息）
func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}

// ==================== Repository 接口定义 ====================

// ConsultationRepository 问诊数据访问接口
// Consultation 行是 status/messageCount 的唯一可信来源，
// 所有变更必须走 SaveWithVersion 乐观锁写入
type ConsultationRepository interface {
	// FindById 根据主键查找问诊
	FindById(id uint) (*model.Consultation, error)
	// Create 创建问诊
	Create(c *model.Consultation) error
	// SaveWithVersion 乐观锁保存
	// 以内存中持有的 Version 作为条件更新；行版本已变化时返回 CodeWriteConflict，
	// 调用方应重新加载后整体重试
	SaveWithVersion(c *model.Consultation) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 创建消息（含附件）
	Create(message *model.Message) error
	// FindByConsultationId 按问诊查找消息，按创建时间升序
	FindByConsultationId(consultationId uint) ([]model.Message, error)
	// FindByUuid 按雪花 ID 查找消息
	FindByUuid(uuid int64) (*model.Message, error)
	// MarkRead 标记消息已读
	MarkRead(uuid int64) error
}

// CallRepository 通话数据访问接口
type CallRepository interface {
	// FindById 根据主键查找通话
	FindById(id uint) (*model.Call, error)
	// FindOngoingByConsultation 查找问诊下未结束的通话（已发起或通话中）
	// 不存在时返回 CodeNotFound
	FindOngoingByConsultation(consultationId uint) (*model.Call, error)
	// Create 创建通话
	Create(call *model.Call) error
	// SaveWithVersion 乐观锁保存，语义同 ConsultationRepository
	SaveWithVersion(call *model.Call) error
}

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	// Create 创建通知
	Create(n *model.Notification) error
	// FindUnviewedByUserId 查找用户的未读通知，按创建时间升序
	FindUnviewedByUserId(userId string) ([]model.Notification, error)
	// MarkViewed 批量标记通知已读（仅限本人的通知）
	MarkViewed(userId string, uuids []int64) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db           *gorm.DB               // GORM 数据库实例
	Consultation ConsultationRepository // 问诊 Repository
	Message      MessageRepository      // 消息 Repository
	Call         CallRepository         // 通话 Repository
	Notification NotificationRepository // 通知 Repository
}

// NewRepositories 创建所有 Repository 实例
// 接收 GORM 数据库实例，初始化并返回 Repositories 聚合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Consultation: NewConsultationRepository(db),
		Message:      NewMessageRepository(db),
		Call:         NewCallRepository(db),
		Notification: NewNotificationRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
// fn: 事务执行函数，接收事务内的 Repositories 实例
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	if r.db == nil {
		// 内存实现没有事务上下文，直接执行
		return fn(r)
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
