package mysql

import (
	"telemed_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 创建消息
// 附件通过 gorm 关联一并写入
func (r *messageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// FindByConsultationId 按问诊查找消息，按创建时间升序
func (r *messageRepository) FindByConsultationId(consultationId uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Preload("Attachments").
		Where("consultation_id = ?", consultationId).
		Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 consultation_id=%d", consultationId)
	}
	return messages, nil
}

// FindByUuid 按雪花 ID 查找消息
func (r *messageRepository) FindByUuid(uuid int64) (*model.Message, error) {
	var message model.Message
	if err := r.db.Preload("Attachments").
		Where("uuid = ?", uuid).First(&message).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%d", uuid)
	}
	return &message, nil
}

// MarkRead 标记消息已读
func (r *messageRepository) MarkRead(uuid int64) error {
	if err := r.db.Model(&model.Message{}).
		Where("uuid = ?", uuid).Update("is_read", true).Error; err != nil {
		return wrapDBErrorf(err, "标记消息已读 uuid=%d", uuid)
	}
	return nil
}
