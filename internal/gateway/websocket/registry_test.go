package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"telemed_server/internal/service"
	"telemed_server/pkg/constants"
)

// testConn 创建不绑定底层连接的 Conn，仅用注册表与发送队列
func testConn(userId string) *Conn {
	return newConn(nil, userId, "patient", "")
}

func TestRegistrySendToUser(t *testing.T) {
	r := NewRegistry()
	c1 := testConn("U1")
	c2 := testConn("U1")
	r.Register("U1", c1)
	r.Register("U1", c2)

	delivered := r.SendToUser("U1", []byte("hello"))
	if delivered != 2 {
		t.Fatalf("expected 2 delivered, got %d", delivered)
	}
	if delivered := r.SendToUser("nobody", []byte("hello")); delivered != 0 {
		t.Fatalf("expected 0 delivered for unknown user, got %d", delivered)
	}
}

func TestRegistryBroadcastToSession(t *testing.T) {
	r := NewRegistry()
	key := service.ConsultationSessionKey(42)
	patient := testConn("U1")
	doctor := testConn("U2")
	outsider := testConn("U3")
	r.Register("U1", patient)
	r.Register("U2", doctor)
	r.Register("U3", outsider)
	r.RegisterToSession(key, patient)
	r.RegisterToSession(key, doctor)

	delivered := r.BroadcastToSession(key, []byte("payload"))
	if delivered != 2 {
		t.Fatalf("expected 2 delivered, got %d", delivered)
	}
	select {
	case <-outsider.sendBack:
		t.Fatal("outsider should not receive session broadcast")
	default:
	}
}

func TestRegistryUnregisterRemovesAllBuckets(t *testing.T) {
	r := NewRegistry()
	key := service.CallSessionKey(7)
	c := testConn("U1")
	r.Register("U1", c)
	r.RegisterToSession(key, c)

	r.Unregister(c)
	if n := r.UserConnCount("U1"); n != 0 {
		t.Fatalf("expected 0 user conns, got %d", n)
	}
	if n := r.SessionConnCount(key); n != 0 {
		t.Fatalf("expected 0 session conns, got %d", n)
	}
	// 幂等
	r.Unregister(c)
}

func TestRegistryFullBufferTreatedAsDisconnect(t *testing.T) {
	r := NewRegistry()
	key := service.ConsultationSessionKey(1)
	slow := testConn("U1")
	healthy := testConn("U2")
	r.Register("U1", slow)
	r.Register("U2", healthy)
	r.RegisterToSession(key, slow)
	r.RegisterToSession(key, healthy)

	// 填满慢连接的发送缓冲
	for i := 0; i < constants.CHANNEL_SIZE; i++ {
		if !slow.Send([]byte("fill")) {
			t.Fatal("buffer filled too early")
		}
	}

	delivered := r.BroadcastToSession(key, []byte("payload"))
	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}

	// 慢连接被异步清理，不影响健康连接
	deadline := time.Now().Add(time.Second)
	for r.UserConnCount("U1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow conn was not cleaned up")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := r.SessionConnCount(key); n != 1 {
		t.Fatalf("expected healthy conn to remain, got %d", n)
	}
}

func TestRegistryClosedConnNotDelivered(t *testing.T) {
	r := NewRegistry()
	c := testConn("U1")
	r.Register("U1", c)
	c.Close()
	if delivered := r.SendToUser("U1", []byte("x")); delivered != 0 {
		t.Fatalf("expected 0 delivered to closed conn, got %d", delivered)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	key := service.ConsultationSessionKey(99)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userId := fmt.Sprintf("U%d", n)
			for j := 0; j < 50; j++ {
				c := testConn(userId)
				r.Register(userId, c)
				r.RegisterToSession(key, c)
				r.BroadcastToSession(key, []byte("tick"))
				r.Unregister(c)
			}
		}(i)
	}
	wg.Wait()
	if n := r.SessionConnCount(key); n != 0 {
		t.Fatalf("expected empty session after churn, got %d", n)
	}
}
