package mysql

import (
	"telemed_server/internal/model"

	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知 Repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create 创建通知
func (r *notificationRepository) Create(n *model.Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return wrapDBError(err, "创建通知")
	}
	return nil
}

// FindUnviewedByUserId 查找用户的未读通知，按创建时间升序
func (r *notificationRepository) FindUnviewedByUserId(userId string) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := r.db.Where("user_id = ? AND is_viewed = ?", userId, false).
		Order("created_at ASC").Find(&notifications).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询未读通知 user_id=%s", userId)
	}
	return notifications, nil
}

// MarkViewed 批量标记通知已读
// 条件中带 user_id，避免误改他人通知
func (r *notificationRepository) MarkViewed(userId string, uuids []int64) error {
	if len(uuids) == 0 {
		return nil
	}
	if err := r.db.Model(&model.Notification{}).
		Where("user_id = ? AND uuid IN ?", userId, uuids).
		Update("is_viewed", true).Error; err != nil {
		return wrapDBErrorf(err, "标记通知已读 user_id=%s", userId)
	}
	return nil
}
