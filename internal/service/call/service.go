// Package call 音视频通话服务
// 通话是问诊内的子会话，服务端只管理通话状态机并转发信令，
// 不解析 SDP 与 ICE candidate 内容
package call

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"telemed_server/internal/config"
	"telemed_server/internal/dao/mysql"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/model"
	"telemed_server/internal/service"
	"telemed_server/pkg/enum/call/call_status_enum"
	"telemed_server/pkg/enum/call/call_type_enum"
	"telemed_server/pkg/enum/consultation/consultation_status_enum"
	"telemed_server/pkg/enum/notification/notification_type_enum"
	"telemed_server/pkg/errorx"
	"telemed_server/pkg/retry"
)

type callService struct {
	repos       *mysql.Repositories
	broadcaster service.Broadcaster
	notifier    service.NotificationService

	writeAttempts int
	writeBackoff  time.Duration
}

// NewCallService 创建通话服务
func NewCallService(repos *mysql.Repositories, broadcaster service.Broadcaster,
	notifier service.NotificationService) service.CallService {
	conf := config.GetConfig().ConsultationConfig
	return &callService{
		repos:         repos,
		broadcaster:   broadcaster,
		notifier:      notifier,
		writeAttempts: conf.WriteAttempts,
		writeBackoff:  conf.WriteBackoff * time.Millisecond,
	}
}

func (s *callService) saveRetry(fn func() error) error {
	return retry.Do(s.writeAttempts, s.writeBackoff, errorx.IsWriteConflict, fn)
}

// sendEvent 通话事件投递给指定用户的全部连接
func (s *callService) sendEvent(userId, eventType string, callId uint) {
	payload, err := json.Marshal(respond.NewCallEventEnvelope(eventType, callId))
	if err != nil {
		return
	}
	s.broadcaster.SendToUser(userId, payload)
}

// Initiate 在进行中的问诊内发起通话
// 同一问诊同时只允许一路未结束的通话
func (s *callService) Initiate(consultationId uint, callerId, callType string) (*respond.CallRespond, error) {
	c, err := s.repos.Consultation.FindById(consultationId)
	if err != nil {
		return nil, err
	}
	if _, ok := c.ParticipantRole(callerId); !ok {
		return nil, errorx.ErrForbidden
	}
	if c.Status != consultation_status_enum.ACTIVE {
		return nil, errorx.Newf(errorx.CodeInvalidTransition,
			"问诊当前为 %s，无法发起通话", consultation_status_enum.Name(c.Status))
	}
	if ongoing, err := s.repos.Call.FindOngoingByConsultation(consultationId); err == nil {
		return nil, errorx.Newf(errorx.CodeInvalidTransition,
			"问诊内已有进行中的通话 %d", ongoing.ID)
	} else if !errorx.IsNotFound(err) {
		return nil, err
	}

	call := &model.Call{
		ConsultationId: consultationId,
		CallerId:       callerId,
		ReceiverId:     c.Counterpart(callerId),
		Type:           call_type_enum.Parse(callType),
		Status:         call_status_enum.INITIATED,
	}
	if err := s.repos.Call.Create(call); err != nil {
		return nil, err
	}
	zap.L().Info("通话发起",
		zap.Uint("call_id", call.ID),
		zap.Uint("consultation_id", consultationId),
		zap.String("caller_id", callerId),
		zap.String("call_type", call_type_enum.Name(call.Type)))

	// 被叫经由通知获知来电，离线时重连后从未读通知补收
	if _, err := s.notifier.Notify(call.ReceiverId, "来电",
		"对方向您发起了"+call_type_enum.Name(call.Type)+"通话",
		notification_type_enum.CallInitiated, call.ID); err != nil {
		zap.L().Error("来电通知投递失败", zap.Uint("call_id", call.ID), zap.Error(err))
	}

	rsp := respond.NewCallRespond(call)
	return &rsp, nil
}

// GetForParticipant 加载通话并校验参与者身份
func (s *callService) GetForParticipant(id uint, userId string) (*model.Call, error) {
	call, err := s.repos.Call.FindById(id)
	if err != nil {
		return nil, err
	}
	if !call.IsParticipant(userId) {
		return nil, errorx.ErrForbidden
	}
	return call, nil
}

// Accept 被叫接听，initiated -> active
func (s *callService) Accept(id uint, userId string) error {
	var updated *model.Call
	err := s.saveRetry(func() error {
		call, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if userId != call.ReceiverId {
			return errorx.New(errorx.CodeForbidden, "只有被叫可以接听")
		}
		if call.Status != call_status_enum.INITIATED {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"通话当前为 %s，无法接听", call_status_enum.Name(call.Status))
		}
		call.Status = call_status_enum.ACTIVE
		call.AcceptedAt.Time, call.AcceptedAt.Valid = time.Now(), true
		if err := s.repos.Call.SaveWithVersion(call); err != nil {
			return err
		}
		updated = call
		return nil
	})
	if err != nil {
		return err
	}
	// 主叫可能尚未进入通话通道，按用户投递而非按会话广播
	s.sendEvent(updated.CallerId, "call-accepted", id)
	s.sendEvent(updated.ReceiverId, "call-accepted", id)
	return nil
}

// End 挂断，任一参与者可挂断；重复挂断视为成功且不再播报
func (s *callService) End(id uint, userId string) error {
	var updated *model.Call
	err := s.saveRetry(func() error {
		call, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if call_status_enum.IsTerminal(call.Status) {
			updated = nil
			return nil
		}
		call.Status = call_status_enum.ENDED
		call.EndedAt.Time, call.EndedAt.Valid = time.Now(), true
		if err := s.repos.Call.SaveWithVersion(call); err != nil {
			return err
		}
		updated = call
		return nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	zap.L().Info("通话结束", zap.Uint("call_id", id), zap.String("by", userId))
	s.sendEvent(updated.CallerId, "call-ended", id)
	s.sendEvent(updated.ReceiverId, "call-ended", id)
	return nil
}

// Reject 被叫拒接，initiated -> rejected
func (s *callService) Reject(id uint, userId string) error {
	var updated *model.Call
	err := s.saveRetry(func() error {
		call, err := s.GetForParticipant(id, userId)
		if err != nil {
			return err
		}
		if userId != call.ReceiverId {
			return errorx.New(errorx.CodeForbidden, "只有被叫可以拒接")
		}
		if call_status_enum.IsTerminal(call.Status) {
			updated = nil
			return nil
		}
		if call.Status != call_status_enum.INITIATED {
			return errorx.Newf(errorx.CodeInvalidTransition,
				"通话当前为 %s，无法拒接", call_status_enum.Name(call.Status))
		}
		call.Status = call_status_enum.REJECTED
		call.EndedAt.Time, call.EndedAt.Valid = time.Now(), true
		if err := s.repos.Call.SaveWithVersion(call); err != nil {
			return err
		}
		updated = call
		return nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	s.sendEvent(updated.CallerId, "call-rejected", id)
	return nil
}

// Relay 信令载荷原样转发给对端，一个字节都不改
// 对端没有任何存活连接时返回 CodePeerUnreachable，由调用方决定是否静默
func (s *callService) Relay(id uint, senderId string, payload []byte) error {
	call, err := s.GetForParticipant(id, senderId)
	if err != nil {
		return err
	}
	if call_status_enum.IsTerminal(call.Status) {
		return errorx.Newf(errorx.CodeInvalidTransition,
			"通话当前为 %s，无法转发信令", call_status_enum.Name(call.Status))
	}
	counterpart := call.Counterpart(senderId)
	if delivered := s.broadcaster.SendToUser(counterpart, payload); delivered == 0 {
		return errorx.Newf(errorx.CodePeerUnreachable, "对端 %s 不在线", counterpart)
	}
	return nil
}
