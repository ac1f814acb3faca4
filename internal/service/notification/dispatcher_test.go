package notification

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"telemed_server/internal/dto/respond"
	"telemed_server/internal/model"
	"telemed_server/pkg/enum/notification/notification_type_enum"
)

// memNotificationRepo 内存通知仓库
type memNotificationRepo struct {
	mu   sync.Mutex
	rows []model.Notification
}

func (r *memNotificationRepo) Create(n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.CreatedAt = time.Now()
	r.rows = append(r.rows, *n)
	return nil
}

func (r *memNotificationRepo) FindUnviewedByUserId(userId string) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.rows {
		if n.UserId == userId && !n.IsViewed {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) MarkViewed(userId string, uuids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].UserId != userId {
			continue
		}
		for _, uuid := range uuids {
			if r.rows[i].Uuid == uuid {
				r.rows[i].IsViewed = true
			}
		}
	}
	return nil
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// flakyBroadcaster 前 failUntil 次投递返回 0，之后成功
type flakyBroadcaster struct {
	mu        sync.Mutex
	attempts  int
	failUntil int
	delivered [][]byte
}

func (b *flakyBroadcaster) BroadcastToSession(string, []byte) int { return 0 }

func (b *flakyBroadcaster) SendToUser(_ string, payload []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.attempts <= b.failUntil {
		return 0
	}
	b.delivered = append(b.delivered, payload)
	return 1
}

func (b *flakyBroadcaster) stats() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts, len(b.delivered)
}

var testDelays = []time.Duration{5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}

func TestNotifyPersistsBeforeDelivery(t *testing.T) {
	repo := &memNotificationRepo{}
	b := &flakyBroadcaster{failUntil: 1 << 30} // 永远离线
	d := NewDispatcher(repo, b, testDelays)
	defer d.Close()

	rsp, err := d.Notify("U1", "新消息", "您有一条新的问诊消息", notification_type_enum.NewMessage, 42)
	if err != nil {
		t.Fatal(err)
	}
	if rsp.Id == 0 {
		t.Fatal("expected snowflake id assigned")
	}
	if repo.count() != 1 {
		t.Fatalf("expected 1 persisted notification, got %d", repo.count())
	}

	unread, _ := d.GetUnviewed("U1")
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread, got %d", len(unread))
	}
}

func TestImportantNotificationRetriesUntilDelivered(t *testing.T) {
	repo := &memNotificationRepo{}
	b := &flakyBroadcaster{failUntil: 2} // 首发与第一次重试失败，第二次重试成功
	d := NewDispatcher(repo, b, testDelays)
	defer d.Close()

	if _, err := d.Notify("U1", "问诊已结束", "问诊已结束", notification_type_enum.ConsultationCompleted, 1); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, delivered := b.stats(); delivered == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("notification was not retried to success")
		}
		time.Sleep(2 * time.Millisecond)
	}

	payload := b.delivered[0]
	var env struct {
		Type         string                      `json:"type"`
		Notification respond.NotificationRespond `json:"notification"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "new_notification" {
		t.Fatalf("expected new_notification envelope, got %s", env.Type)
	}
	if env.Notification.Type != notification_type_enum.ConsultationCompleted {
		t.Fatalf("unexpected notification type %s", env.Notification.Type)
	}
}

func TestUnimportantNotificationDoesNotRetry(t *testing.T) {
	repo := &memNotificationRepo{}
	b := &flakyBroadcaster{failUntil: 1 << 30}
	d := NewDispatcher(repo, b, testDelays)

	if _, err := d.Notify("U1", "新消息", "您有一条新的问诊消息", notification_type_enum.NewMessage, 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	d.Close()

	if attempts, _ := b.stats(); attempts != 1 {
		t.Fatalf("expected single attempt for unimportant type, got %d", attempts)
	}
}

func TestRetryGivesUpAfterSchedule(t *testing.T) {
	repo := &memNotificationRepo{}
	b := &flakyBroadcaster{failUntil: 1 << 30}
	d := NewDispatcher(repo, b, testDelays)

	if _, err := d.Notify("U1", "医生已接诊", "医生已开始接诊", notification_type_enum.ConsultationStarted, 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	d.Close()

	// 首发 + 3 次重试后放弃
	if attempts, _ := b.stats(); attempts != 1+len(testDelays) {
		t.Fatalf("expected %d attempts, got %d", 1+len(testDelays), attempts)
	}
	// 放弃后仍可从未读列表补收
	unread, _ := d.GetUnviewed("U1")
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread after give-up, got %d", len(unread))
	}
}

func TestCloseCancelsPendingRetries(t *testing.T) {
	repo := &memNotificationRepo{}
	b := &flakyBroadcaster{failUntil: 1 << 30}
	longDelays := []time.Duration{time.Hour}
	d := NewDispatcher(repo, b, longDelays)

	if _, err := d.Notify("U1", "新的问诊", "您有一条新的待接诊问诊", notification_type_enum.NewConsultation, 1); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		d.Close() // 必须立刻返回，不等一小时
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel pending retry")
	}
}

func TestMarkViewedOnlyOwnNotifications(t *testing.T) {
	repo := &memNotificationRepo{}
	b := &flakyBroadcaster{}
	d := NewDispatcher(repo, b, testDelays)
	defer d.Close()

	r1, _ := d.Notify("U1", "t", "c", notification_type_enum.NewMessage, 1)
	r2, _ := d.Notify("U2", "t", "c", notification_type_enum.NewMessage, 1)

	if err := d.MarkViewed("U1", []int64{r1.Id, r2.Id}); err != nil {
		t.Fatal(err)
	}
	u1, _ := d.GetUnviewed("U1")
	u2, _ := d.GetUnviewed("U2")
	if len(u1) != 0 {
		t.Fatalf("expected U1 notifications viewed, got %d unread", len(u1))
	}
	if len(u2) != 1 {
		t.Fatalf("U2 notification must be untouched, got %d unread", len(u2))
	}
}
