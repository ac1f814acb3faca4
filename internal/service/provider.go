// provider.go 定义 Service 聚合结构
// 具体实现位于各子包（consultation / call / notification），
// 组装在 main 中完成，避免本包反向依赖子包
package service

// Services 聚合所有业务服务实例
type Services struct {
	Consultation ConsultationService
	Call         CallService
	Notification NotificationService
}
