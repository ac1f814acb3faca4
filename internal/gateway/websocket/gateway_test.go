package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	myredis "telemed_server/internal/dao/redis"
	"telemed_server/internal/dto/request"
	"telemed_server/internal/dto/respond"
	"telemed_server/internal/model"
	"telemed_server/internal/service"
	"telemed_server/pkg/errorx"
)

// ==================== 桩实现 ====================

// stubTicketStore 以预置 map 兑现票据，兑现一次后删除
type stubTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*myredis.TicketIdentity
}

func newStubTicketStore() *stubTicketStore {
	return &stubTicketStore{tickets: make(map[string]*myredis.TicketIdentity)}
}

func (s *stubTicketStore) Issue(_ context.Context, userId, role string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "ticket-" + userId
	s.tickets[token] = &myredis.TicketIdentity{UserId: userId, Role: role}
	return token, nil
}

func (s *stubTicketStore) Resolve(_ context.Context, token string) (*myredis.TicketIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.tickets[token]
	if !ok {
		return nil, errorx.ErrUnauthorized
	}
	delete(s.tickets, token)
	return identity, nil
}

// stubConsultationService 记录网关分发到的调用
type stubConsultationService struct {
	mu           sync.Mutex
	postCalls    []string
	completeFrom []string
	postErr      error
}

func (s *stubConsultationService) Create(string, string) (*respond.ConsultationRespond, error) {
	return nil, nil
}

func (s *stubConsultationService) GetForParticipant(id uint, userId string) (*model.Consultation, error) {
	if id == 404 {
		return nil, errorx.Newf(errorx.CodeNotFound, "问诊 %d 不存在", id)
	}
	if userId != "P1" && userId != "D1" {
		return nil, errorx.ErrForbidden
	}
	c := &model.Consultation{PatientId: "P1", DoctorId: "D1"}
	c.ID = id
	return c, nil
}

func (s *stubConsultationService) Start(uint, string) error { return nil }

func (s *stubConsultationService) PostMessage(id uint, senderId string, req *request.ChatMessageRequest) (*respond.MessageRespond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postErr != nil {
		return nil, s.postErr
	}
	s.postCalls = append(s.postCalls, senderId+":"+req.Content)
	return &respond.MessageRespond{Id: 1, ConsultationId: id, SenderId: senderId, Content: req.Content}, nil
}

func (s *stubConsultationService) Complete(_ uint, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeFrom = append(s.completeFrom, userId)
	return nil
}

func (s *stubConsultationService) Cancel(uint, string) error          { return nil }
func (s *stubConsultationService) Extend(uint, string, string) error  { return nil }
func (s *stubConsultationService) GetMessages(uint, string) ([]respond.MessageRespond, error) {
	return nil, nil
}
func (s *stubConsultationService) MarkMessageRead(uint, string, int64) error { return nil }

// stubCallService 仅 Relay 有行为：经注册表转发给对端
type stubCallService struct {
	registry *Registry
}

func (s *stubCallService) Initiate(uint, string, string) (*respond.CallRespond, error) {
	return &respond.CallRespond{Id: 7, Status: "initiated"}, nil
}

func (s *stubCallService) GetForParticipant(id uint, userId string) (*model.Call, error) {
	if userId != "P1" && userId != "D1" {
		return nil, errorx.ErrForbidden
	}
	c := &model.Call{ConsultationId: 1, CallerId: "P1", ReceiverId: "D1"}
	c.ID = id
	return c, nil
}

func (s *stubCallService) Accept(uint, string) error { return nil }
func (s *stubCallService) End(uint, string) error    { return nil }
func (s *stubCallService) Reject(uint, string) error { return nil }

func (s *stubCallService) Relay(_ uint, senderId string, payload []byte) error {
	counterpart := "D1"
	if senderId == "D1" {
		counterpart = "P1"
	}
	if delivered := s.registry.SendToUser(counterpart, payload); delivered == 0 {
		return errorx.Newf(errorx.CodePeerUnreachable, "对端 %s 不在线", counterpart)
	}
	return nil
}

// ==================== 测试环境 ====================

type gatewayEnv struct {
	server   *httptest.Server
	tickets  *stubTicketStore
	consults *stubConsultationService
	registry *Registry
}

func newGatewayEnv(t *testing.T) *gatewayEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := NewRegistry()
	tickets := newStubTicketStore()
	consults := &stubConsultationService{}
	calls := &stubCallService{registry: registry}
	gateway := NewGateway(registry, tickets, consults, calls)

	engine := gin.New()
	engine.GET("/ws/:kind/:id", gateway.HandleConnect)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return &gatewayEnv{server: server, tickets: tickets, consults: consults, registry: registry}
}

// dial 建立 websocket 连接，自动签发票据
func (e *gatewayEnv) dial(t *testing.T, userId, kind string, id string) *gorillaws.Conn {
	t.Helper()
	token, err := e.tickets.Issue(context.Background(), userId, "patient", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/" + kind + "/" + id + "?token=" + token
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// readEnvelope 读取下一帧并解出 type
func readEnvelope(t *testing.T, conn *gorillaws.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env request.WsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return env.Type, raw
}

// ==================== 用例 ====================

func TestGatewayPingPong(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.dial(t, "P1", KindConsultation, "1")
	defer conn.Close()

	if err := conn.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	envType, _ := readEnvelope(t, conn)
	if envType != "pong" {
		t.Fatalf("expected pong, got %s", envType)
	}
}

func TestGatewayRejectsInvalidTicket(t *testing.T) {
	env := newGatewayEnv(t)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/consultation/1?token=bogus"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("expected close, got frame")
	}
	if !gorillaws.IsCloseError(err, gorillaws.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestGatewayRejectsTicketReuse(t *testing.T) {
	env := newGatewayEnv(t)
	token, _ := env.tickets.Issue(context.Background(), "P1", "patient", time.Minute)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/consultation/1?token=" + token

	first, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	// 同一票据第二次兑现必须被拒绝
	second, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := second.ReadMessage(); !gorillaws.IsCloseError(err, gorillaws.ClosePolicyViolation) {
		t.Fatalf("expected policy violation for reused ticket, got %v", err)
	}
}

func TestGatewayRejectsNonParticipant(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.dial(t, "U_OUTSIDER", KindConsultation, "1")
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !gorillaws.IsCloseError(err, gorillaws.ClosePolicyViolation) {
		t.Fatalf("expected policy violation for outsider, got %v", err)
	}
}

func TestGatewayDispatchesChatMessage(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.dial(t, "P1", KindConsultation, "1")
	defer conn.Close()

	msg := `{"type":"message","content":"你好"}`
	if err := conn.WriteMessage(gorillaws.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		env.consults.mu.Lock()
		n := len(env.consults.postCalls)
		env.consults.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("PostMessage was not dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}
	env.consults.mu.Lock()
	defer env.consults.mu.Unlock()
	if env.consults.postCalls[0] != "P1:你好" {
		t.Fatalf("unexpected call: %s", env.consults.postCalls[0])
	}
}

func TestGatewayBusinessErrorGoesToSenderOnly(t *testing.T) {
	env := newGatewayEnv(t)
	env.consults.postErr = errorx.New(errorx.CodeQuotaExceeded, "问诊消息配额已用尽")

	sender := env.dial(t, "P1", KindConsultation, "1")
	defer sender.Close()
	peer := env.dial(t, "D1", KindConsultation, "1")
	defer peer.Close()

	if err := sender.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"message","content":"超额"}`)); err != nil {
		t.Fatal(err)
	}

	envType, raw := readEnvelope(t, sender)
	if envType != "error" {
		t.Fatalf("expected error envelope, got %s", envType)
	}
	var errEnv respond.ErrorEnvelope
	if err := json.Unmarshal(raw, &errEnv); err != nil {
		t.Fatal(err)
	}
	if errEnv.Code != errorx.CodeQuotaExceeded {
		t.Fatalf("expected quota code, got %d", errEnv.Code)
	}

	// 对端不应收到错误信封
	_ = peer.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := peer.ReadMessage(); err == nil {
		t.Fatal("peer must not receive sender's error")
	}
}

func TestGatewayUnknownEnvelopeIgnored(t *testing.T) {
	env := newGatewayEnv(t)
	conn := env.dial(t, "P1", KindConsultation, "1")
	defer conn.Close()

	if err := conn.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"teleport"}`)); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(gorillaws.TextMessage, []byte(`not json at all`)); err != nil {
		t.Fatal(err)
	}
	// 连接保持存活，后续 ping 正常
	if err := conn.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	envType, _ := readEnvelope(t, conn)
	if envType != "pong" {
		t.Fatalf("expected pong after ignored envelopes, got %s", envType)
	}
}

func TestGatewaySignalRelayBetweenCallPeers(t *testing.T) {
	env := newGatewayEnv(t)
	caller := env.dial(t, "P1", KindCall, "7")
	defer caller.Close()
	callee := env.dial(t, "D1", KindCall, "7")
	defer callee.Close()

	offer := `{"type":"offer","sdp":{"type":"offer","sdp":"v=0"}}`
	if err := caller.WriteMessage(gorillaws.TextMessage, []byte(offer)); err != nil {
		t.Fatal(err)
	}

	envType, raw := readEnvelope(t, callee)
	if envType != "offer" {
		t.Fatalf("expected offer at callee, got %s", envType)
	}
	if string(raw) != offer {
		t.Fatalf("signal payload must be verbatim, got %s", raw)
	}
}

func TestGatewayParticipantLeftBroadcast(t *testing.T) {
	env := newGatewayEnv(t)
	leaving := env.dial(t, "P1", KindConsultation, "1")
	staying := env.dial(t, "D1", KindConsultation, "1")
	defer staying.Close()

	// 等双方都注册完成
	key := service.ConsultationSessionKey(1)
	deadline := time.Now().Add(time.Second)
	for env.registry.SessionConnCount(key) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("both conns did not register")
		}
		time.Sleep(5 * time.Millisecond)
	}

	leaving.Close()

	envType, raw := readEnvelope(t, staying)
	if envType != "participant_left" {
		t.Fatalf("expected participant_left, got %s", envType)
	}
	var left respond.ParticipantLeftEnvelope
	if err := json.Unmarshal(raw, &left); err != nil {
		t.Fatal(err)
	}
	if left.UserId != "P1" {
		t.Fatalf("expected P1 left, got %s", left.UserId)
	}
}
