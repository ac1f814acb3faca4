// Package payment 支付凭证校验协作者
// 配额续费的支付流程由外部支付服务完成，本服务只拿凭证做一次校验
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"telemed_server/internal/service"
)

// httpVerifier 调用外部支付服务的校验接口
type httpVerifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPVerifier 创建支付凭证校验器
// endpoint 为空时返回直接放行的桩实现，供本地开发使用
func NewHTTPVerifier(endpoint string) service.PaymentVerifier {
	if endpoint == "" {
		return alwaysAccept{}
	}
	return &httpVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type verifyRequest struct {
	Proof string `json:"proof"`
}

type verifyRespond struct {
	Valid bool `json:"valid"`
}

// Verify 实现 service.PaymentVerifier
func (v *httpVerifier) Verify(ctx context.Context, proof string) (bool, error) {
	body, err := json.Marshal(verifyRequest{Proof: proof})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	rsp, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payment verify status %d", rsp.StatusCode)
	}
	var result verifyRespond
	if err := json.NewDecoder(rsp.Body).Decode(&result); err != nil {
		return false, err
	}
	return result.Valid, nil
}

// alwaysAccept 本地开发用的放行桩
type alwaysAccept struct{}

func (alwaysAccept) Verify(context.Context, string) (bool, error) {
	return true, nil
}
