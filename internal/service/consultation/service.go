// Package consultation 问诊会话服务
// 问诊行是共享状态的唯一可信来源，所有写入走乐观锁加整体重试；
// 状态转换成功后向会话广播 status_update，再投递离线通知
package consultation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"telemed_server/internal/config"
	"telemed_server/internal/dao/mysql"
	myredis "telemed_server/internal/dao/redis"
	"telemed_server/internal/dto/request"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/model"
	"telemed_server/internal/service"
	"telemed_server/pkg/constants"
	"telemed_server/pkg/enum/consultation/consultation_status_enum"
	"telemed_server/pkg/enum/notification/notification_type_enum"
	"telemed_server/pkg/enum/user/sender_role_enum"
	"telemed_server/pkg/errorx"
	"telemed_server/pkg/retry"
	"telemed_server/pkg/util/snowflake"
)

// 结束原因
const (
	reasonManual       = "manual"
	reasonLimitReached = "limit_reached"
)

// messagesCacheKey 问诊消息列表的缓存键
func messagesCacheKey(consultationId uint) string {
	return fmt.Sprintf("consultation_messages_%d", consultationId)
}

type consultationService struct {
	repos       *mysql.Repositories
	cache       myredis.AsyncCacheService
	broadcaster service.Broadcaster
	notifier    service.NotificationService
	payments    service.PaymentVerifier
	events      service.EventPublisher

	writeAttempts int
	writeBackoff  time.Duration
	messageLimit  int
	increment     int

	lockMu sync.Mutex
	locks  map[uint]*sync.Mutex
}

// NewConsultationService 创建问诊服务
// events 在单机模式下可为 nil
func NewConsultationService(repos *mysql.Repositories, cache myredis.AsyncCacheService,
	broadcaster service.Broadcaster, notifier service.NotificationService,
	payments service.PaymentVerifier, events service.EventPublisher) service.ConsultationService {
	conf := config.GetConfig().ConsultationConfig
	return &consultationService{
		repos:         repos,
		cache:         cache,
		broadcaster:   broadcaster,
		notifier:      notifier,
		payments:      payments,
		events:        events,
		writeAttempts: conf.WriteAttempts,
		writeBackoff:  conf.WriteBackoff * time.Millisecond,
		messageLimit:  conf.MessageLimit,
		increment:     conf.LimitIncrement,
		locks:         make(map[uint]*sync.Mutex),
	}
}

// sessionLock 问诊级别的顺序锁
// 持锁区间覆盖"写入提交到广播入队"，保证状态广播先于其后才被接受的消息广播
func (s *consultationService) sessionLock(id uint) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// saveRetry 对整段"读-改-写"做写冲突重试
// 每次尝试都重新加载问诊行，避免在旧快照上累积修改
func (s *consultationService) saveRetry(fn func() error) error {
	return retry.Do(s.writeAttempts, s.writeBackoff, errorx.IsWriteConflict, fn)
}

// broadcastStatus 向会话广播状态变更，同时发布到事件总线
func (s *consultationService) broadcastStatus(c *model.Consultation, autoCompleted bool) {
	payload, err := json.Marshal(respond.NewStatusUpdateEnvelope(respond.NewConsultationRespond(c), autoCompleted))
	if err != nil {
		return
	}
	key := service.ConsultationSessionKey(c.ID)
	s.broadcaster.BroadcastToSession(key, payload)
	if s.events != nil {
		s.events.Publish(key, "", payload)
	}
}

// Create 患者发起问诊
func (s *consultationService) Create(patientId, doctorId string) (*respond.ConsultationRespond, error) {
	if patientId == doctorId {
		return nil, errorx.New(errorx.CodeInvalidParam, "患者与医生不能为同一用户")
	}
	c := &model.Consultation{
		PatientId:    patientId,
		DoctorId:     doctorId,
		Status:       consultation_status_enum.PENDING,
		MessageLimit: s.messageLimit,
	}
	if err := s.repos.Consultation.Create(c); err != nil {
		return nil, err
	}
	zap.L().Info("问诊创建",
		zap.Uint("consultation_id", c.ID),
		zap.String("patient_id", patientId),
		zap.String("doctor_id", doctorId))
	if _, err := s.notifier.Notify(doctorId, "新的问诊", "您有一条新的待接诊问诊",
		notification_type_enum.NewConsultation, c.ID); err != nil {
		zap.L().Error("新问诊通知投递失败", zap.Uint("consultation_id", c.ID), zap.Error(err))
	}
	rsp := respond.NewConsultationRespond(c)
	return &rsp, nil
}

// GetForParticipant 加载问诊并校验参与者身份
func (s *consultationService) GetForParticipant(id uint, userId string) (*model.Consultation, error) {
	c, err := s.repos.Consultation.FindById(id)
	if err != nil {
		return nil, err
	}
	if _, ok := c.ParticipantRole(userId); !ok {
		return nil, errorx.ErrForbidden
	}
	return c, nil
}

// Start 医生接诊，pending -> active
func (s *consultationService) Start(id uint, userId string) error {
	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	var updated *model.Consultation
	err := s.saveRetry(func() error {
		c, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if userId != c.DoctorId {
			return errorx.New(errorx.CodeForbidden, "只有医生可以接诊")
		}
		if c.Status != consultation_status_enum.PENDING {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"问诊当前为 %s，无法接诊", consultation_status_enum.Name(c.Status))
		}
		c.Status = consultation_status_enum.ACTIVE
		c.StartedAt.Time, c.StartedAt.Valid = time.Now(), true
		if err := s.repos.Consultation.SaveWithVersion(c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return err
	}
	s.broadcastStatus(updated, false)
	if _, err := s.notifier.Notify(updated.PatientId, "医生已接诊", "医生已开始接诊，您可以发送消息了",
		notification_type_enum.ConsultationStarted, updated.ID); err != nil {
		zap.L().Error("接诊通知投递失败", zap.Uint("consultation_id", id), zap.Error(err))
	}
	return nil
}

// PostMessage 发送聊天消息
// 消息落库与配额递增在同一事务内提交，配额由患者消息用尽时自动完结
func (s *consultationService) PostMessage(id uint, senderId string, req *request.ChatMessageRequest) (*respond.MessageRespond, error) {
	if req.Content == "" && len(req.Attachments) == 0 {
		return nil, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	var (
		msg           *model.Message
		updated       *model.Consultation
		autoCompleted bool
	)
	err := s.saveRetry(func() error {
		c, err := s.repos.Consultation.FindById(id)
		if err != nil {
			return err
		}
		role, ok := c.ParticipantRole(senderId)
		if !ok {
			return errorx.ErrForbidden
		}
		if c.Status != consultation_status_enum.ACTIVE {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"问诊当前为 %s，无法发送消息", consultation_status_enum.Name(c.Status))
		}
		if c.MessageCount >= c.MessageLimit {
			return errorx.New(errorx.CodeQuotaExceeded, "问诊消息配额已用尽")
		}

		m := &model.Message{
			Uuid:           snowflake.GenerateID(),
			ConsultationId: c.ID,
			SenderId:       senderId,
			SenderRole:     role,
			Content:        req.Content,
			SentAt:         time.Now(),
		}
		for _, a := range req.Attachments {
			m.Attachments = append(m.Attachments, model.Attachment{
				FileName:    a.FileName,
				Path:        a.Path,
				FileSize:    a.FileSize,
				ContentType: a.ContentType,
			})
		}

		c.MessageCount++
		auto := false
		if c.MessageCount >= c.MessageLimit && role == sender_role_enum.PATIENT {
			c.Status = consultation_status_enum.COMPLETED
			c.CompletedAt.Time, c.CompletedAt.Valid = time.Now(), true
			c.CompletedReason = reasonLimitReached
			auto = true
		}

		if err := s.repos.Transaction(func(tx *mysql.Repositories) error {
			if err := tx.Message.Create(m); err != nil {
				return err
			}
			return tx.Consultation.SaveWithVersion(c)
		}); err != nil {
			return err
		}
		msg, updated, autoCompleted = m, c, auto
		return nil
	})
	if err != nil {
		return nil, err
	}

	rsp := respond.NewMessageRespond(msg)
	payload, merr := json.Marshal(respond.NewMessageEnvelope(rsp))
	if merr == nil {
		key := service.ConsultationSessionKey(id)
		s.broadcaster.BroadcastToSession(key, payload)
		if s.events != nil {
			s.events.Publish(key, "", payload)
		}
	}
	s.invalidateMessagesCache(id)

	// 状态转换广播恰好一次，由本次写入的唯一赢家发出
	if autoCompleted {
		s.broadcastStatus(updated, true)
		s.notifyCompleted(updated, "问诊已结束（消息配额用尽）")
	}

	counterpart := updated.Counterpart(senderId)
	if _, err := s.notifier.Notify(counterpart, "新消息", "您有一条新的问诊消息",
		notification_type_enum.NewMessage, id); err != nil {
		zap.L().Error("新消息通知投递失败", zap.Uint("consultation_id", id), zap.Error(err))
	}
	return &rsp, nil
}

// Complete 手动完结，重复完结视为成功且不再广播
func (s *consultationService) Complete(id uint, userId string) error {
	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	var updated *model.Consultation
	err := s.saveRetry(func() error {
		c, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if c.Status == consultation_status_enum.COMPLETED {
			updated = nil // 已由先到者完结，幂等返回
			return nil
		}
		if c.Status != consultation_status_enum.ACTIVE {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"问诊当前为 %s，无法结束", consultation_status_enum.Name(c.Status))
		}
		c.Status = consultation_status_enum.COMPLETED
		c.CompletedAt.Time, c.CompletedAt.Valid = time.Now(), true
		c.CompletedReason = reasonManual
		if err := s.repos.Consultation.SaveWithVersion(c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	s.broadcastStatus(updated, false)
	s.notifyCompleted(updated, "问诊已结束")
	return nil
}

// Cancel 取消问诊，待接诊或进行中均可取消
func (s *consultationService) Cancel(id uint, userId string) error {
	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	var updated *model.Consultation
	err := s.saveRetry(func() error {
		c, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if c.Status == consultation_status_enum.CANCELLED {
			updated = nil
			return nil
		}
		if consultation_status_enum.IsTerminal(c.Status) {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"问诊当前为 %s，无法取消", consultation_status_enum.Name(c.Status))
		}
		c.Status = consultation_status_enum.CANCELLED
		c.CompletedAt.Time, c.CompletedAt.Valid = time.Now(), true
		if err := s.repos.Consultation.SaveWithVersion(c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	s.broadcastStatus(updated, false)
	if _, err := s.notifier.Notify(updated.Counterpart(userId), "问诊已取消", "对方取消了本次问诊",
		notification_type_enum.ConsultationCancelled, id); err != nil {
		zap.L().Error("取消通知投递失败", zap.Uint("consultation_id", id), zap.Error(err))
	}
	return nil
}

// Extend 校验支付凭证后追加消息配额
func (s *consultationService) Extend(id uint, userId, paymentProof string) error {
	if paymentProof == "" {
		return errorx.New(errorx.CodeInvalidParam, "缺少支付凭证")
	}
	ok, err := s.payments.Verify(context.Background(), paymentProof)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "支付凭证校验失败")
	}
	if !ok {
		return errorx.New(errorx.CodeForbidden, "支付凭证无效")
	}

	// 外部校验不持锁，锁只覆盖写入与广播
	mu := s.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	var updated *model.Consultation
	err = s.saveRetry(func() error {
		c, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if c.Status != consultation_status_enum.ACTIVE {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"问诊当前为 %s，无法续费", consultation_status_enum.Name(c.Status))
		}
		c.MessageLimit += s.increment
		if err := s.repos.Consultation.SaveWithVersion(c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return err
	}
	zap.L().Info("问诊配额扩容",
		zap.Uint("consultation_id", id),
		zap.Int("message_limit", updated.MessageLimit))
	s.broadcastStatus(updated, false)
	return nil
}

// GetMessages 拉取历史消息，优先走缓存
func (s *consultationService) GetMessages(id uint, userId string) ([]respond.MessageRespond, error) {
	if _, err := s.GetForParticipant(id, userId); err != nil {
		return nil, err
	}

	key := messagesCacheKey(id)
	ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
	defer cancel()
	if cached, err := s.cache.GetOrError(ctx, key); err == nil {
		var rsp []respond.MessageRespond
		if err := json.Unmarshal([]byte(cached), &rsp); err == nil {
			return rsp, nil
		}
	}

	messages, err := s.repos.Message.FindByConsultationId(id)
	if err != nil {
		return nil, err
	}
	rsp := make([]respond.MessageRespond, 0, len(messages))
	for i := range messages {
		rsp = append(rsp, respond.NewMessageRespond(&messages[i]))
	}

	// 回填缓存走异步任务池，不阻塞请求
	if data, err := json.Marshal(rsp); err == nil {
		s.cache.SubmitTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
			defer cancel()
			if err := s.cache.Set(ctx, key, string(data), time.Minute*10); err != nil {
				zap.L().Error("消息缓存写入失败", zap.String("key", key), zap.Error(err))
			}
		})
	}
	return rsp, nil
}

// MarkMessageRead 已读回执
// 只能标记对端发来的消息，回执实时转发给会话
func (s *consultationService) MarkMessageRead(id uint, readerId string, messageUuid int64) error {
	if _, err := s.GetForParticipant(id, readerId); err != nil {
		return err
	}
	m, err := s.repos.Message.FindByUuid(messageUuid)
	if err != nil {
		return err
	}
	if m.ConsultationId != id {
		return errorx.New(errorx.CodeInvalidParam, "消息不属于该问诊")
	}
	if m.SenderId == readerId {
		return errorx.New(errorx.CodeInvalidParam, "不能标记自己发送的消息")
	}
	if m.IsRead {
		return nil
	}
	if err := s.repos.Message.MarkRead(messageUuid); err != nil {
		return err
	}
	s.invalidateMessagesCache(id)
	payload, merr := json.Marshal(respond.ReadReceiptEnvelope{
		Type:      "read_receipt",
		MessageId: messageUuid,
		ReaderId:  readerId,
	})
	if merr == nil {
		s.broadcaster.BroadcastToSession(service.ConsultationSessionKey(id), payload)
	}
	return nil
}

// notifyCompleted 问诊结束后通知双方
func (s *consultationService) notifyCompleted(c *model.Consultation, content string) {
	for _, userId := range []string{c.PatientId, c.DoctorId} {
		if _, err := s.notifier.Notify(userId, "问诊已结束", content,
			notification_type_enum.ConsultationCompleted, c.ID); err != nil {
			zap.L().Error("问诊结束通知投递失败",
				zap.Uint("consultation_id", c.ID),
				zap.String("user_id", userId), zap.Error(err))
		}
	}
}

// invalidateMessagesCache 消息变更后异步失效缓存
func (s *consultationService) invalidateMessagesCache(id uint) {
	s.cache.SubmitTask(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.REDIS_TIMEOUT*time.Second)
		defer cancel()
		if err := s.cache.Delete(ctx, messagesCacheKey(id)); err != nil {
			zap.L().Error("消息缓存失效失败", zap.Uint("consultation_id", id), zap.Error(err))
		}
	})
}
