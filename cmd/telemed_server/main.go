package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telemed_server/internal/config"
	dao "telemed_server/internal/dao/mysql"
	myredis "telemed_server/internal/dao/redis"
	ws "telemed_server/internal/gateway/websocket"
	"telemed_server/internal/handler"
	"telemed_server/internal/https_server"
	"telemed_server/internal/infrastructure/logger"
	"telemed_server/internal/infrastructure/mq"
	"telemed_server/internal/infrastructure/payment"
	"telemed_server/internal/service"
	"telemed_server/internal/service/call"
	"telemed_server/internal/service/consultation"
	"telemed_server/internal/service/notification"
	"telemed_server/pkg/util/jwt"
	"telemed_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	repos := dao.Init()
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	myredis.Init()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化 JWT 与雪花节点
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	snowflake.Init()

	// 6. 初始化 validator 翻译器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("validator 翻译器初始化失败", zap.Error(err))
	}

	// 7. 组装实时网关与 Service 层
	registry := ws.NewRegistry()

	var eventBus *mq.EventBus
	var events service.EventPublisher
	if conf.KafkaConfig.MessageMode == "kafka" {
		eventBus = mq.NewEventBus()
		eventBus.CreateTopic()
		eventBus.StartRelay(registry)
		events = eventBus
		zap.L().Info("kafka 事件总线已启用")
	}

	notifier := notification.NewDispatcher(repos.Notification, registry, nil)
	payments := payment.NewHTTPVerifier(conf.PaymentConfig.Endpoint)
	services := &service.Services{
		Consultation: consultation.NewConsultationService(
			repos, myredis.GetCacheService(), registry, notifier, payments, events),
		Call:         call.NewCallService(repos, registry, notifier),
		Notification: notifier,
	}

	gateway := ws.NewGateway(registry, myredis.GetTicketStore(),
		services.Consultation, services.Call)
	zap.L().Info("实时网关初始化成功")

	// 8. 初始化 HTTP 服务器并启动
	handlers := handler.NewHandlers(services, myredis.GetTicketStore(), gateway)
	engine := https_server.Init(handlers)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()
	zap.L().Info("服务器启动", zap.String("addr", srv.Addr))

	// 9. 等待退出信号，按依赖逆序收尾
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("HTTP 服务器关闭失败", zap.Error(err))
	}

	services.Notification.Close()
	if eventBus != nil {
		eventBus.Close()
	}
	myredis.Close()

	zap.L().Info("服务器已关闭")
}
