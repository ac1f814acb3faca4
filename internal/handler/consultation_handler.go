// Package handler 提供 HTTP 请求处理器
// 本文件处理问诊相关的 REST 请求；实时操作走 WebSocket 信封
package handler

import (
	"strconv"

	"telemed_server/internal/dto/request"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/service"
	"telemed_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// ConsultationHandler 问诊处理器
type ConsultationHandler struct {
	consultations service.ConsultationService
}

// NewConsultationHandler 创建问诊处理器
func NewConsultationHandler(consultations service.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{consultations: consultations}
}

// consultationIdParam 解析路径中的问诊 id
func consultationIdParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errorx.ErrInvalidParam
	}
	return uint(id), nil
}

// CreateHandler 患者发起问诊
// POST /api/consultation
// 请求体: request.CreateConsultationRequest
func (h *ConsultationHandler) CreateHandler(c *gin.Context) {
	var req request.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	rsp, err := h.consultations.Create(c.GetString("user_id"), req.DoctorId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, rsp)
}

// GetHandler 查询问诊详情（仅参与者可见）
// GET /api/consultation/:id
func (h *ConsultationHandler) GetHandler(c *gin.Context) {
	id, err := consultationIdParam(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	consultation, err := h.consultations.GetForParticipant(id, c.GetString("user_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewConsultationRespond(consultation))
}

// MessagesHandler 拉取问诊历史消息
// GET /api/consultation/:id/messages
func (h *ConsultationHandler) MessagesHandler(c *gin.Context) {
	id, err := consultationIdParam(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	messages, err := h.consultations.GetMessages(id, c.GetString("user_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, messages)
}
