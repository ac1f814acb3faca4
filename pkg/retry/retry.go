// Package retry 提供统一的重试组合子
// 所有乐观锁写入（问诊计数、状态转换、通话状态）都经由 Do 执行，
// 重试策略只在这里定义一次，避免散落在各个 handler 中
package retry

import (
	"time"
)

// Do 执行 fn，失败且 retryable(err) 为真时重试，最多尝试 maxAttempts 次
// 每次重试前等待 backoff * 已失败次数（线性退避）
// 返回最后一次的错误；fn 成功则立即返回 nil
func Do(maxAttempts int, backoff time.Duration, retryable func(error) bool, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		if attempt < maxAttempts {
			time.Sleep(backoff * time.Duration(attempt))
		}
	}
	return err
}
