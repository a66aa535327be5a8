// Copyright 2026 ApexBridge Technologies
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/log"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/metrics"
)

// Policy 重试策略；每次调用不可变
type Policy struct {
	// MaxRetries 最大重试次数（不含首次）
	MaxRetries int
	// BaseDelay 首次退避时长，之后按 2^attempt 指数增长
	BaseDelay time.Duration
	// MaxDelay 退避时长上限，也约束 Retry-After 提示
	MaxDelay time.Duration
	// RetryableStatusCodes 可重试的 HTTP 状态码集合
	RetryableStatusCodes []int
}

// DefaultPolicy 默认策略：3 次重试、1s 起步、30s 封顶、{502,503,504,429}
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:           3,
		BaseDelay:            time.Second,
		MaxDelay:             30 * time.Second,
		RetryableStatusCodes: []int{502, 503, 504, 429},
	}
}

// IsRetryableStatus 状态码是否在可重试集合内
func (p Policy) IsRetryableStatus(code int) bool {
	for _, c := range p.RetryableStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Operation 单次网络尝试；Retryer 负责次数与退避，尝试本身不得内部重试
type Operation func(ctx context.Context) (*resty.Response, error)

// Retryer 以有界指数退避包装单个网络操作。
// 连接层错误按次数重试（AuthenticationError 除外，立即中止）；
// 收到响应时仅当状态码可重试且仍有剩余次数时重试，否则原样返回交调用方判定。
type Retryer struct {
	policy Policy
	logger *log.Logger
	// sleep 退避等待，测试可替换；默认实现可被 ctx 取消
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer 创建 Retryer；logger 为 nil 时静默
func NewRetryer(policy Policy, logger *log.Logger) *Retryer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Retryer{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Do 执行 op 直至成功、不可重试或次数耗尽；attempt 序列严格串行
func (r *Retryer) Do(ctx context.Context, op Operation) (*resty.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetryAttemptTotal.Inc()
		}
		resp, err := op(ctx)
		if err != nil {
			if IsAuthError(err) {
				return nil, err
			}
			lastErr = err
			if attempt == r.policy.MaxRetries {
				break
			}
			d := r.backoff(attempt, nil)
			r.logger.Warn("request failed, retrying",
				"attempt", attempt+1, "max_retries", r.policy.MaxRetries,
				"delay", d.String(), "error", err)
			if serr := r.sleep(ctx, d); serr != nil {
				return nil, serr
			}
			continue
		}

		if r.policy.IsRetryableStatus(resp.StatusCode()) && attempt < r.policy.MaxRetries {
			d := r.backoff(attempt, resp)
			r.logger.Warn("retryable status, retrying",
				"status", resp.StatusCode(), "attempt", attempt+1, "delay", d.String())
			if serr := r.sleep(ctx, d); serr != nil {
				return nil, serr
			}
			continue
		}
		return resp, nil
	}
	if _, ok := lastErr.(*TransportError); ok {
		return nil, lastErr
	}
	return nil, &TransportError{Err: lastErr}
}

// backoff 计算本次退避：优先 Retry-After 提示，否则 base*2^attempt ±10% 抖动，均受 MaxDelay 约束
func (r *Retryer) backoff(attempt int, resp *resty.Response) time.Duration {
	var d time.Duration
	if hint := retryAfterHint(resp); hint > 0 {
		d = hint
	} else {
		exp := float64(r.policy.BaseDelay) * math.Pow(2, float64(attempt))
		jitter := 1 + (rand.Float64()*0.2 - 0.1)
		d = time.Duration(exp * jitter)
	}
	if d > r.policy.MaxDelay {
		d = r.policy.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	metrics.BackoffSeconds.Observe(d.Seconds())
	return d
}

// retryAfterHint 解析 Retry-After 响应头；支持秒数与 HTTP 日期两种形式
func retryAfterHint(resp *resty.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header().Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// sleepContext 可被 ctx 取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
