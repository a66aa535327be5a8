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

// Package bugspotter 对外入口：按配置装配提交管线并暴露 Submit。
// 无包级可变状态，调用方构造 Client 后自行持有并传递。
package bugspotter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/dedup"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/offline"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/report"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/submit"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/transport"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/upload"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/config"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/log"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/metrics"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/secrets"
)

// 对外复用的类型别名，调用方无需引用 internal 包
type (
	// Payload 一次提交的输入
	Payload = report.Payload
	// Data 诊断数据主体
	Data = report.Data
	// ConsoleEntry 控制台记录
	ConsoleEntry = report.ConsoleEntry
	// NetworkEntry 网络记录
	NetworkEntry = report.NetworkEntry
	// Result 提交结果
	Result = submit.Result
	// UploadResult 单 artifact 上传结果
	UploadResult = report.UploadResult
	// Redactor 脱敏钩子
	Redactor = report.Redactor
	// ProgressFunc 上传进度回调
	ProgressFunc = upload.ProgressFunc
)

// Client 提交管线的外观；并发安全，建议进程内复用单个实例
type Client struct {
	coordinator *submit.Coordinator
	deduper     *dedup.Deduplicator
	queue       *offline.Queue
	logger      *log.Logger
}

// Option Client 装配选项
type Option func(*options)

type options struct {
	redactor Redactor
	progress ProgressFunc
	logger   *log.Logger
}

// WithRedactor 设置脱敏钩子（引擎由调用方提供）
func WithRedactor(r Redactor) Option {
	return func(o *options) { o.redactor = r }
}

// WithProgress 设置上传进度回调
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithLogger 替换默认 Logger
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New 按配置装配 Client；端点与凭据不完整时立即失败，不发网络请求
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	var o options
	for _, apply := range opts {
		apply(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Endpoint == "" {
		return nil, &transport.ValidationError{Reason: "endpoint is not configured"}
	}
	if err := transport.ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}

	apiKey, err := resolveAPIKey(ctx, cfg)
	if err != nil {
		return nil, err
	}
	creds := transport.Credentials{APIKey: apiKey, ProjectID: cfg.ProjectID}
	if _, err := transport.AuthHeaders(creds); err != nil {
		return nil, err
	}

	policy := transport.Policy{
		MaxRetries:           cfg.Retry.MaxRetries,
		BaseDelay:            cfg.Retry.BaseDelayDuration(),
		MaxDelay:             cfg.Retry.MaxDelayDuration(),
		RetryableStatusCodes: cfg.Retry.RetryableStatusCodes,
	}
	if len(policy.RetryableStatusCodes) == 0 {
		policy = transport.DefaultPolicy()
	}

	httpClient := resty.New().SetTimeout(30 * time.Second)

	var deduper *dedup.Deduplicator
	if cfg.Deduplication.DedupEnabled() {
		deduper = dedup.NewDeduplicator(
			cfg.Deduplication.WindowDuration(),
			cfg.Deduplication.MaxCacheSize,
			logger.Component("dedup"),
		)
	}

	var queue *offline.Queue
	if cfg.Offline.Enabled {
		store, err := offline.NewStore(ctx, cfg.Offline)
		if err != nil {
			if deduper != nil {
				deduper.Stop()
			}
			return nil, fmt.Errorf("init offline queue: %w", err)
		}
		queue = offline.NewQueue(store, httpClient, logger.Component("offline"), cfg.Offline.MaxAttempts)
	}

	uploader := upload.NewOrchestrator(httpClient, transport.BaseURL(cfg.Endpoint), creds, logger.Component("upload"))
	if o.progress != nil {
		uploader.SetProgress(o.progress)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.QPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.QPS), burst)
	}

	coordinator := submit.NewCoordinator(submit.Options{
		Endpoint: cfg.Endpoint,
		Creds:    creds,
		Policy:   policy,
		Client:   httpClient,
		Dedup:    deduper,
		Queue:    queue,
		Uploader: uploader,
		Limiter:  limiter,
		Redactor: o.redactor,
		Logger:   logger.Component("submit"),
	})

	return &Client{
		coordinator: coordinator,
		deduper:     deduper,
		queue:       queue,
		logger:      logger,
	}, nil
}

// resolveAPIKey 按配置解析 API Key：secrets provider 优先，否则用明文字段
func resolveAPIKey(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Secrets.Provider == "" {
		return cfg.APIKey, nil
	}
	store, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Config:   cfg.Secrets.Vault,
	})
	if err != nil {
		return "", fmt.Errorf("init secret store: %w", err)
	}
	key := cfg.Secrets.Key
	if key == "" {
		key = "BUGSPOTTER_API_KEY"
	}
	value, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve api key: %w", err)
	}
	return value, nil
}

// Submit 提交一份报告；语义见 submit.Coordinator
func (c *Client) Submit(ctx context.Context, p *Payload) (*Result, error) {
	return c.coordinator.Submit(ctx, p)
}

// WriteMetrics 输出 Prometheus 文本格式指标
func (c *Client) WriteMetrics(w io.Writer) error {
	return metrics.WritePrometheus(w)
}

// Close 停止后台清扫并释放队列存储
func (c *Client) Close() error {
	if c.deduper != nil {
		c.deduper.Stop()
	}
	if c.queue != nil {
		return c.queue.Close()
	}
	return nil
}
