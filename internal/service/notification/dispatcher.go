// Package notification 通知分发服务
// 投递语义为至少一次：必须先落库，再尝试实时投递；
// 重要类型在目标用户离线时按配置的延迟序列后台重试，
// 全部重试失败则静默放弃，用户重连后从未读列表补收
package notification

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"telemed_server/internal/config"
	"telemed_server/internal/dao/mysql"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/model"
	"telemed_server/internal/service"
	"telemed_server/pkg/enum/notification/notification_type_enum"
	"telemed_server/pkg/util/snowflake"
)

type dispatcher struct {
	repo        mysql.NotificationRepository
	broadcaster service.Broadcaster
	delays      []time.Duration

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewDispatcher 创建通知分发器
// delays 为空时取配置中的重试延迟序列（配置值为秒数）
func NewDispatcher(repo mysql.NotificationRepository, broadcaster service.Broadcaster,
	delays []time.Duration) service.NotificationService {
	if len(delays) == 0 {
		for _, d := range config.GetConfig().NotificationConfig.RetryDelays {
			delays = append(delays, d*time.Second)
		}
	}
	return &dispatcher{
		repo:        repo,
		broadcaster: broadcaster,
		delays:      delays,
		stop:        make(chan struct{}),
	}
}

// Notify 持久化通知并尝试实时投递
// 落库失败直接报错，不做任何投递；投递失败不影响返回值
func (d *dispatcher) Notify(userId, title, content, notifyType string, relatedId uint) (*respond.NotificationRespond, error) {
	n := &model.Notification{
		Uuid:      snowflake.GenerateID(),
		UserId:    userId,
		Title:     title,
		Content:   content,
		Type:      notifyType,
		RelatedId: relatedId,
	}
	if err := d.repo.Create(n); err != nil {
		return nil, err
	}

	rsp := respond.NewNotificationRespond(n)
	payload, err := json.Marshal(respond.NewNotificationEnvelope{
		Type:         "new_notification",
		Notification: rsp,
	})
	if err == nil {
		delivered := d.broadcaster.SendToUser(userId, payload)
		if delivered == 0 && notification_type_enum.IsImportant(notifyType) {
			d.wg.Add(1)
			go d.retryDeliver(userId, n.Uuid, payload)
		}
	}
	return &rsp, nil
}

// retryDeliver 按延迟序列重试投递，任一次成功即停
// 服务关闭时立即退出，不等待剩余延迟
func (d *dispatcher) retryDeliver(userId string, uuid int64, payload []byte) {
	defer d.wg.Done()
	for attempt, delay := range d.delays {
		select {
		case <-d.stop:
			return
		case <-time.After(delay):
		}
		if d.broadcaster.SendToUser(userId, payload) > 0 {
			zap.L().Info("通知重试投递成功",
				zap.Int64("notification_id", uuid),
				zap.String("user_id", userId),
				zap.Int("attempt", attempt+1))
			return
		}
	}
	// 放弃，用户重连后从未读列表拉取
	zap.L().Warn("通知重试投递放弃",
		zap.Int64("notification_id", uuid),
		zap.String("user_id", userId),
		zap.Int("attempts", len(d.delays)))
}

// GetUnviewed 拉取未读通知
func (d *dispatcher) GetUnviewed(userId string) ([]respond.NotificationRespond, error) {
	list, err := d.repo.FindUnviewedByUserId(userId)
	if err != nil {
		return nil, err
	}
	rsp := make([]respond.NotificationRespond, 0, len(list))
	for i := range list {
		rsp = append(rsp, respond.NewNotificationRespond(&list[i]))
	}
	return rsp, nil
}

// MarkViewed 批量标记已读，仅限本人的通知
func (d *dispatcher) MarkViewed(userId string, uuids []int64) error {
	return d.repo.MarkViewed(userId, uuids)
}

// Close 停止所有后台重试任务并等待退出，幂等
func (d *dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}
