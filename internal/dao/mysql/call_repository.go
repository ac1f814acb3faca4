package mysql

import (
	"telemed_server/internal/model"
	"telemed_server/pkg/errorx"
	"telemed_server/pkg/enum/call/call_status_enum"

	"gorm.io/gorm"
)

type callRepository struct {
	db *gorm.DB
}

// NewCallRepository 创建通话 Repository
func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

// FindById 根据主键查找通话
func (r *callRepository) FindById(id uint) (*model.Call, error) {
	var call model.Call
	if err := r.db.First(&call, id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询通话 id=%d", id)
	}
	return &call, nil
}

// FindOngoingByConsultation 查找问诊下未结束的通话
// 用于保证同一问诊同时只存在一个未结束通话
func (r *callRepository) FindOngoingByConsultation(consultationId uint) (*model.Call, error) {
	var call model.Call
	if err := r.db.
		Where("consultation_id = ? AND status IN ?", consultationId,
			[]int8{call_status_enum.INITIATED, call_status_enum.ACTIVE}).
		First(&call).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询进行中通话 consultation_id=%d", consultationId)
	}
	return &call, nil
}

// Create 创建通话
func (r *callRepository) Create(call *model.Call) error {
	if err := r.db.Create(call).Error; err != nil {
		return wrapDBError(err, "创建通话")
	}
	return nil
}

// SaveWithVersion 乐观锁保存，语义同问诊
func (r *callRepository) SaveWithVersion(call *model.Call) error {
	res := r.db.Model(&model.Call{}).
		Where("id = ? AND version = ?", call.ID, call.Version).
		Updates(map[string]interface{}{
			"status":      call.Status,
			"accepted_at": call.AcceptedAt,
			"ended_at":    call.EndedAt,
			"version":     call.Version + 1,
		})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "保存通话 id=%d", call.ID)
	}
	if res.RowsAffected == 0 {
		return errorx.Newf(errorx.CodeWriteConflict, "通话 %d 版本冲突 version=%d", call.ID, call.Version)
	}
	call.Version++
	return nil
}
