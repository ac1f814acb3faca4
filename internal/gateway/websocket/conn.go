// conn.go
// 单个 websocket 连接的读写泵
// 写泵独占底层连接的写端，所有出站帧经 sendBack 通道排队；
// 读泵负责解析入站信封并刷新空闲超时
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telemed_server/pkg/constants"
)

const writeWait = 10 * time.Second

// Conn 网关连接
type Conn struct {
	ws         *websocket.Conn
	UserId     string
	Role       string // "patient" / "doctor"
	SessionKey string

	sendBack  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// newConn 包装一条已升级的底层连接
func newConn(ws *websocket.Conn, userId, role, sessionKey string) *Conn {
	return &Conn{
		ws:         ws,
		UserId:     userId,
		Role:       role,
		SessionKey: sessionKey,
		sendBack:   make(chan []byte, constants.CHANNEL_SIZE),
		closed:     make(chan struct{}),
	}
}

// Send 将载荷排入出站队列，返回是否入队成功
// 缓冲已满或连接已关闭均算失败，由调用方按隐式断开处理
func (c *Conn) Send(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.sendBack <- payload:
		return true
	case <-c.closed:
		return false
	default:
		return false
	}
}

// Close 关闭连接，幂等
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// writeLoop 出站写泵，每条连接一个 goroutine
func (c *Conn) writeLoop() {
	defer c.Close()
	for {
		select {
		case payload := <-c.sendBack:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				zap.L().Debug("websocket 写入失败",
					zap.String("user_id", c.UserId), zap.Error(err))
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readLoop 入站读泵，逐条交给 handle 回调
// 空闲超时内未收到任何帧（含 pong）则关闭连接
func (c *Conn) readLoop(idleTimeout time.Duration, handle func(raw []byte)) {
	defer c.Close()
	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("websocket 读取失败",
					zap.String("user_id", c.UserId), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
		handle(raw)
	}
}
