package constants

const (
	CHANNEL_SIZE            = 100 // 连接发送缓冲通道大小
	REDIS_TIMEOUT           = 10  // redis 操作超时（秒）
	WS_TICKET_EXPIRY_SECOND = 300 // WebSocket 连接凭证有效期（秒），约 5 分钟

	DEFAULT_MESSAGE_LIMIT   = 30 // 问诊默认消息配额
	MESSAGE_LIMIT_INCREMENT = 30 // 单次续费增加的消息配额

	WRITE_RETRY_ATTEMPTS = 3 // 乐观锁写入最大尝试次数
)
