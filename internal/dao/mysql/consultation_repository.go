package mysql

import (
	"telemed_server/internal/model"
	"telemed_server/pkg/errorx"

	"gorm.io/gorm"
)

type consultationRepository struct {
	db *gorm.DB
}

// NewConsultationRepository 创建问诊 Repository
func NewConsultationRepository(db *gorm.DB) ConsultationRepository {
	return &consultationRepository{db: db}
}

// FindById 根据主键查找问诊
func (r *consultationRepository) FindById(id uint) (*model.Consultation, error) {
	var c model.Consultation
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询问诊 id=%d", id)
	}
	return &c, nil
}

// Create 创建问诊
func (r *consultationRepository) Create(c *model.Consultation) error {
	if err := r.db.Create(c).Error; err != nil {
		return wrapDBError(err, "创建问诊")
	}
	return nil
}

// SaveWithVersion 乐观锁保存
// UPDATE consultation SET ... , version = version+1 WHERE id = ? AND version = ?
// 影响行数为 0 说明其他写入者先行提交了新版本，返回 CodeWriteConflict 供上层重试
func (r *consultationRepository) SaveWithVersion(c *model.Consultation) error {
	res := r.db.Model(&model.Consultation{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"status":           c.Status,
			"message_limit":    c.MessageLimit,
			"message_count":    c.MessageCount,
			"started_at":       c.StartedAt,
			"completed_at":     c.CompletedAt,
			"completed_reason": c.CompletedReason,
			"version":          c.Version + 1,
		})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "保存问诊 id=%d", c.ID)
	}
	if res.RowsAffected == 0 {
		return errorx.Newf(errorx.CodeWriteConflict, "问诊 %d 版本冲突 version=%d", c.ID, c.Version)
	}
	c.Version++
	return nil
}
