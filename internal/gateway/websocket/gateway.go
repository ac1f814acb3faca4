// gateway.go
// websocket 握手入口
// 流程：升级 -> 一次性票据换取身份 -> 参与者校验 -> 注册 -> 读写泵
// 任一校验失败以对应关闭码拒绝，不进入注册表
package websocket

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telemed_server/internal/config"
	myredis "telemed_server/internal/dao/redis"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/service"
	"telemed_server/pkg/errorx"
)

const (
	// KindConsultation 问诊聊天连接
	KindConsultation = "consultation"
	// KindCall 通话信令连接
	KindCall = "call"
)

// Gateway 实时网关
type Gateway struct {
	registry      *Registry
	tickets       myredis.TicketStore
	consultations service.ConsultationService
	calls         service.CallService
	upgrader      websocket.Upgrader
	idleTimeout   time.Duration

	consultationHandlers map[string]envelopeHandler
	callHandlers         map[string]envelopeHandler
}

// NewGateway 创建实时网关
func NewGateway(registry *Registry, tickets myredis.TicketStore,
	consultations service.ConsultationService, calls service.CallService) *Gateway {
	conf := config.GetConfig().WebsocketConfig
	g := &Gateway{
		registry:      registry,
		tickets:       tickets,
		consultations: consultations,
		calls:         calls,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  conf.ReadBufferSize,
			WriteBufferSize: conf.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		idleTimeout: conf.IdleTimeout * time.Second,
	}
	g.consultationHandlers = g.buildConsultationTable()
	g.callHandlers = g.buildCallTable()
	return g
}

// HandleConnect 处理 GET /ws/:kind/:id?token=xxx
func (g *Gateway) HandleConnect(c *gin.Context) {
	kind := c.Param("kind")
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || (kind != KindConsultation && kind != KindCall) {
		c.Status(http.StatusBadRequest)
		return
	}
	id := uint(id64)

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error("websocket 升级失败", zap.Error(err))
		return
	}

	// 票据为一次性，换取后立即失效
	identity, err := g.tickets.Resolve(c.Request.Context(), c.Query("token"))
	if err != nil {
		rejectAndClose(ws, websocket.ClosePolicyViolation, "无效的连接票据")
		return
	}

	if err := g.verifyParticipant(kind, id, identity.UserId); err != nil {
		code := websocket.ClosePolicyViolation
		if errorx.IsNotFound(err) {
			code = websocket.CloseNormalClosure
		}
		rejectAndClose(ws, code, errorx.GetMsg(err))
		return
	}

	sessionKey := service.ConsultationSessionKey(id)
	if kind == KindCall {
		sessionKey = service.CallSessionKey(id)
	}
	conn := newConn(ws, identity.UserId, identity.Role, sessionKey)
	g.registry.Register(identity.UserId, conn)
	g.registry.RegisterToSession(sessionKey, conn)
	zap.L().Info("websocket 连接建立",
		zap.String("user_id", identity.UserId),
		zap.String("session_key", sessionKey),
	)

	go conn.writeLoop()

	handlers := g.consultationHandlers
	if kind == KindCall {
		handlers = g.callHandlers
	}
	ctx := &connContext{gateway: g, conn: conn, kind: kind, targetId: id}
	conn.readLoop(g.idleTimeout, func(raw []byte) {
		g.dispatch(handlers, ctx, raw)
	})

	// 读泵退出即视为离线
	g.registry.Unregister(conn)
	conn.Close()
	g.broadcastLeft(sessionKey, identity.UserId)
	zap.L().Info("websocket 连接关闭",
		zap.String("user_id", identity.UserId),
		zap.String("session_key", sessionKey),
	)
}

// verifyParticipant 校验目标资源存在且用户为参与者
func (g *Gateway) verifyParticipant(kind string, id uint, userId string) error {
	if kind == KindCall {
		_, err := g.calls.GetForParticipant(id, userId)
		return err
	}
	_, err := g.consultations.GetForParticipant(id, userId)
	return err
}

// broadcastLeft 向会话其余成员播报参与者离线
func (g *Gateway) broadcastLeft(sessionKey, userId string) {
	payload, err := json.Marshal(respond.NewParticipantLeftEnvelope(userId))
	if err != nil {
		return
	}
	g.registry.BroadcastToSession(sessionKey, payload)
}

// rejectAndClose 发送关闭帧后断开，握手失败路径专用
func rejectAndClose(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}
