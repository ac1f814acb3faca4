// dispatch.go
// 入站信封分发表
// 问诊连接与通话连接各一张表，按信封 type 查找 handler；
// 未知类型与格式错误只记日志，不断开连接；
// 业务错误只回发给发起方，不影响会话内其他连接
package websocket

import (
	"encoding/json"

	"go.uber.org/zap"

	"telemed_server/internal/dto/request"
	"telemed_server/internal/dto/respond"
	"telemed_server/pkg/errorx"
)

// connContext 单条连接的分发上下文
type connContext struct {
	gateway  *Gateway
	conn     *Conn
	kind     string
	targetId uint // 问诊连接为问诊 id，通话连接为通话 id
}

type envelopeHandler func(ctx *connContext, raw []byte) error

// dispatch 解析信封类型并路由到对应 handler
func (g *Gateway) dispatch(handlers map[string]envelopeHandler, ctx *connContext, raw []byte) {
	var envelope request.WsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		zap.L().Warn("信封解析失败，忽略",
			zap.String("user_id", ctx.conn.UserId), zap.Error(err))
		return
	}
	handler, ok := handlers[envelope.Type]
	if !ok {
		zap.L().Warn("未知信封类型，忽略",
			zap.String("type", envelope.Type),
			zap.String("user_id", ctx.conn.UserId))
		return
	}
	if err := handler(ctx, raw); err != nil {
		g.sendError(ctx.conn, err)
	}
}

// sendError 将业务错误以错误信封回发给发起方
func (g *Gateway) sendError(c *Conn, err error) {
	payload, marshalErr := json.Marshal(
		respond.NewErrorEnvelope(errorx.GetCode(err), errorx.GetMsg(err)))
	if marshalErr != nil {
		return
	}
	c.Send(payload)
}

// send 序列化并投递给单条连接
func send(c *Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Send(payload)
}

// buildConsultationTable 问诊连接的分发表
func (g *Gateway) buildConsultationTable() map[string]envelopeHandler {
	return map[string]envelopeHandler{
		"ping":          handlePing,
		"message":       g.handleChatMessage,
		"read_receipt":  g.handleReadReceipt,
		"status_update": g.handleStatusUpdate,
		"extend":        g.handleExtend,
		"call-initiate": g.handleCallInitiate,
	}
}

// buildCallTable 通话连接的分发表
func (g *Gateway) buildCallTable() map[string]envelopeHandler {
	return map[string]envelopeHandler{
		"ping":          handlePing,
		"offer":         g.handleSignal,
		"answer":        g.handleSignal,
		"ice-candidate": g.handleSignal,
		"call-accept":   g.handleCallAccept,
		"call-end":      g.handleCallEnd,
		"call-reject":   g.handleCallReject,
	}
}

func handlePing(ctx *connContext, _ []byte) error {
	send(ctx.conn, respond.PongEnvelope{Type: "pong"})
	return nil
}

func (g *Gateway) handleChatMessage(ctx *connContext, raw []byte) error {
	var req request.ChatMessageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorx.ErrInvalidParam
	}
	_, err := g.consultations.PostMessage(ctx.targetId, ctx.conn.UserId, &req)
	return err
}

func (g *Gateway) handleReadReceipt(ctx *connContext, raw []byte) error {
	var req request.ReadReceiptRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorx.ErrInvalidParam
	}
	return g.consultations.MarkMessageRead(ctx.targetId, ctx.conn.UserId, req.MessageId)
}

func (g *Gateway) handleStatusUpdate(ctx *connContext, raw []byte) error {
	var req request.StatusUpdateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorx.ErrInvalidParam
	}
	switch req.Status {
	case "active":
		return g.consultations.Start(ctx.targetId, ctx.conn.UserId)
	case "completed":
		return g.consultations.Complete(ctx.targetId, ctx.conn.UserId)
	case "cancelled":
		return g.consultations.Cancel(ctx.targetId, ctx.conn.UserId)
	default:
		return errorx.Newf(errorx.CodeInvalidParam, "不支持的状态: %s", req.Status)
	}
}

func (g *Gateway) handleExtend(ctx *connContext, raw []byte) error {
	var req request.ExtendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorx.ErrInvalidParam
	}
	return g.consultations.Extend(ctx.targetId, ctx.conn.UserId, req.PaymentProof)
}

func (g *Gateway) handleCallInitiate(ctx *connContext, raw []byte) error {
	var req request.CallControlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorx.ErrInvalidParam
	}
	call, err := g.calls.Initiate(ctx.targetId, ctx.conn.UserId, req.CallType)
	if err != nil {
		return err
	}
	// 主叫从这里拿到通话 id，随后连接通话信令通道
	send(ctx.conn, respond.CallEventEnvelope{
		Type:   "call-initiated",
		CallId: call.Id,
		Call:   call,
	})
	return nil
}

// handleSignal 信令帧原样转发，对端不可达静默丢弃
func (g *Gateway) handleSignal(ctx *connContext, raw []byte) error {
	err := g.calls.Relay(ctx.targetId, ctx.conn.UserId, raw)
	if err != nil && errorx.GetCode(err) == errorx.CodePeerUnreachable {
		zap.L().Debug("信令对端不可达，丢弃",
			zap.Uint("call_id", ctx.targetId),
			zap.String("sender_id", ctx.conn.UserId))
		return nil
	}
	return err
}

func (g *Gateway) handleCallAccept(ctx *connContext, _ []byte) error {
	return g.calls.Accept(ctx.targetId, ctx.conn.UserId)
}

func (g *Gateway) handleCallEnd(ctx *connContext, _ []byte) error {
	return g.calls.End(ctx.targetId, ctx.conn.UserId)
}

func (g *Gateway) handleCallReject(ctx *connContext, _ []byte) error {
	return g.calls.Reject(ctx.targetId, ctx.conn.UserId)
}
