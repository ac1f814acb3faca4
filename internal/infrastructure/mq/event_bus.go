// Package mq 会话事件总线
// messageMode 为 "kafka" 时，所有会话广播同时发布到事件主题，
// 其他实例消费后向本实例持有的连接转发，实现多实例部署；
// "channel" 模式下事件总线不启用，广播仅在本进程内完成
package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	myconfig "telemed_server/internal/config"
	"telemed_server/internal/service"
)

// SessionEvent 跨实例转发的会话事件
// InstanceId 用于消费端跳过自己发布的事件，避免重复投递
type SessionEvent struct {
	InstanceId string          `json:"instance_id"`
	SessionKey string          `json:"session_key"`
	UserId     string          `json:"user_id,omitempty"` // 非空时按用户投递而非按会话广播
	Payload    json.RawMessage `json:"payload"`
}

// EventBus kafka 事件总线，实现 service.EventPublisher
type EventBus struct {
	instanceId string
	writer     *kafka.Writer
	reader     *kafka.Reader
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewEventBus 创建事件总线并建立 kafka 连接
func NewEventBus() *EventBus {
	kafkaConfig := myconfig.GetConfig().KafkaConfig
	instanceId := uuid.NewString()
	return &EventBus{
		instanceId: instanceId,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(kafkaConfig.HostPort),
			Topic:                  kafkaConfig.EventTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           kafkaConfig.Timeout * time.Second,
			RequiredAcks:           kafka.RequireNone,
			AllowAutoTopicCreation: false,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{kafkaConfig.HostPort},
			Topic:          kafkaConfig.EventTopic,
			CommitInterval: kafkaConfig.Timeout * time.Second,
			GroupID:        "telemed_" + instanceId, // 每个实例独立消费组，事件广播给所有实例
			StartOffset:    kafka.LastOffset,
		}),
		done: make(chan struct{}),
	}
}

// CreateTopic 创建事件主题，已存在时 kafka 返回的错误仅记录
func (b *EventBus) CreateTopic() {
	kafkaConfig := myconfig.GetConfig().KafkaConfig
	conn, err := kafka.Dial("tcp", kafkaConfig.HostPort)
	if err != nil {
		zap.L().Error("kafka 连接失败", zap.Error(err))
		return
	}
	defer conn.Close()
	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             kafkaConfig.EventTopic,
		NumPartitions:     kafkaConfig.Partition,
		ReplicationFactor: 1,
	})
	if err != nil {
		zap.L().Error("kafka 主题创建失败", zap.Error(err))
	}
}

// Publish 实现 service.EventPublisher
// 发布失败仅记录日志，本地广播已完成，不影响调用方
func (b *EventBus) Publish(sessionKey, userId string, payload []byte) {
	event := SessionEvent{
		InstanceId: b.instanceId,
		SessionKey: sessionKey,
		UserId:     userId,
		Payload:    payload,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := b.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(sessionKey),
		Value: value,
	}); err != nil {
		zap.L().Error("会话事件发布失败",
			zap.String("session_key", sessionKey), zap.Error(err))
	}
}

// StartRelay 启动消费循环，将其他实例的事件转发给本实例的连接
func (b *EventBus) StartRelay(broadcaster service.Broadcaster) {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go func() {
		defer close(b.done)
		for {
			m, err := b.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Error("会话事件读取失败", zap.Error(err))
				continue
			}
			var event SessionEvent
			if err := json.Unmarshal(m.Value, &event); err != nil {
				zap.L().Error("会话事件解析失败", zap.Error(err))
				continue
			}
			if event.InstanceId == b.instanceId {
				continue // 本实例已本地广播过
			}
			if event.UserId != "" {
				broadcaster.SendToUser(event.UserId, event.Payload)
			} else {
				broadcaster.BroadcastToSession(event.SessionKey, event.Payload)
			}
		}
	}()
}

// Close 停止消费循环并关闭 kafka 连接
func (b *EventBus) Close() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	if err := b.writer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	if err := b.reader.Close(); err != nil {
		zap.L().Error(err.Error())
	}
}
