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

package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/dedup"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/offline"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/report"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/transport"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/upload"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/log"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/metrics"
)

// Result 一次成功（或部分成功）提交的产出
type Result struct {
	ReportID string
	Uploads  []report.UploadResult
}

// Options Coordinator 依赖与开关；nil 字段表示对应能力关闭
type Options struct {
	Endpoint string
	Creds    transport.Credentials
	Policy   transport.Policy
	Client   *resty.Client
	Dedup    *dedup.Deduplicator
	Queue    *offline.Queue
	Uploader *upload.Orchestrator
	Limiter  *rate.Limiter
	Redactor report.Redactor
	Logger   *log.Logger
}

// Coordinator 提交管线入口：配置校验 → 去重闸 → 带重试的创建调用 →
// 响应校验 → artifact 带外上传；网络失败且离线启用时入队待重放
type Coordinator struct {
	endpoint string
	creds    transport.Credentials
	policy   transport.Policy
	client   *resty.Client
	retryer  *transport.Retryer
	dedup    *dedup.Deduplicator
	queue    *offline.Queue
	uploader *upload.Orchestrator
	limiter  *rate.Limiter
	redactor report.Redactor
	logger   *log.Logger
}

// NewCoordinator 创建 Coordinator
func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	client := opts.Client
	if client == nil {
		client = resty.New().SetTimeout(30 * time.Second)
	}
	return &Coordinator{
		endpoint: opts.Endpoint,
		creds:    opts.Creds,
		policy:   opts.Policy,
		client:   client,
		retryer:  transport.NewRetryer(opts.Policy, logger.Component("retry")),
		dedup:    opts.Dedup,
		queue:    opts.Queue,
		uploader: opts.Uploader,
		limiter:  opts.Limiter,
		redactor: opts.Redactor,
		logger:   logger,
	}
}

// Submit 执行一次完整提交。错误分类见各 error 类型；
// 离线队列的排空在后台独立进行，不影响本次提交。
func (c *Coordinator) Submit(ctx context.Context, p *report.Payload) (*Result, error) {
	start := time.Now()
	res, err := c.submit(ctx, p)
	metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	return res, err
}

func (c *Coordinator) submit(ctx context.Context, p *report.Payload) (*Result, error) {
	// 1. 同步配置校验，任何网络请求之前失败
	if c.endpoint == "" {
		return nil, &transport.ValidationError{Reason: "endpoint is not configured"}
	}
	if err := transport.ValidateEndpoint(c.endpoint); err != nil {
		return nil, err
	}
	authHeaders, err := transport.AuthHeaders(c.creds)
	if err != nil {
		return nil, err
	}

	// 每次管线调用都触发一次后台排空；fire-and-forget，失败只记日志
	c.drainQueueAsync()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	data := p.Report
	if c.redactor != nil {
		redacted, err := c.redactor.Redact(data)
		if err != nil {
			return nil, fmt.Errorf("redact report data: %w", err)
		}
		data = redacted
	}

	// 2-3. 去重闸：窗口内重复或同指纹在途都在此拦下，不产生网络请求
	fingerprint := dedup.Fingerprint(p.Title, p.Description, data.ErrorSignatures())
	if c.dedup != nil {
		if c.dedup.IsDuplicate(fingerprint) {
			metrics.SubmissionTotal.WithLabelValues("duplicate").Inc()
			return nil, &dedup.DuplicateError{Fingerprint: fingerprint, Wait: c.dedup.Window()}
		}
		if !c.dedup.MarkInProgress(fingerprint) {
			metrics.SubmissionTotal.WithLabelValues("duplicate").Inc()
			return nil, &dedup.DuplicateError{Fingerprint: fingerprint, Wait: c.dedup.Window()}
		}
		// 成功、失败、提前返回都必须解除 in-flight 标记
		defer c.dedup.MarkComplete(fingerprint)
	}

	// 4. 创建调用（带重试）
	body, err := json.Marshal(report.CreateRequest{
		Title:         p.Title,
		Description:   p.Description,
		Report:        data,
		HasScreenshot: p.HasScreenshot(),
		HasReplay:     p.HasReplay(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode report payload: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range authHeaders {
		headers[k] = v
	}

	resp, err := c.retryer.Do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(body).
			Post(c.endpoint)
	})
	if err != nil {
		var te *transport.TransportError
		if errors.As(err, &te) && c.queue != nil {
			if qerr := c.queue.Enqueue(ctx, c.endpoint, body, headers); qerr != nil {
				c.logger.Error("enqueue failed request", "error", qerr)
			} else {
				metrics.SubmissionTotal.WithLabelValues("queued").Inc()
				return nil, fmt.Errorf("submission queued for later replay: %w", err)
			}
		}
		metrics.SubmissionTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// 5. HTTP 层失败：带状态与服务端文本上抛，读不到正文用占位串
	if !resp.IsSuccess() {
		metrics.SubmissionTotal.WithLabelValues("failed").Inc()
		text := resp.String()
		if text == "" {
			text = "Unknown error"
		}
		return nil, &transport.HTTPError{StatusCode: resp.StatusCode(), Body: text}
	}

	// 6. 响应结构校验；不合法即致命，不重试
	created, err := parseCreateResponse(resp.Body())
	if err != nil {
		metrics.SubmissionTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	c.logger.Info("report created", "report_id", created.ID)

	// 7. artifact 带外上传
	artifacts := p.Artifacts()
	result := &Result{ReportID: created.ID}
	if len(artifacts) > 0 {
		if created.PresignedURLs == nil {
			metrics.SubmissionTotal.WithLabelValues("failed").Inc()
			return nil, &transport.ValidationError{
				Reason: fmt.Sprintf("presigned URLs not provided for report %s", created.ID),
			}
		}
		if c.uploader == nil {
			metrics.SubmissionTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("report %s has artifacts but uploader is not configured", created.ID)
		}
		uploads, err := c.uploader.UploadFiles(ctx, created.ID, artifacts, created.PresignedURLs)
		result.Uploads = uploads
		if err != nil {
			metrics.SubmissionTotal.WithLabelValues("failed").Inc()
			return result, err
		}
	}

	// 8. 整体成功后写入去重完成记录
	if c.dedup != nil {
		c.dedup.RecordSubmission(fingerprint)
	}
	metrics.SubmissionTotal.WithLabelValues("success").Inc()
	return result, nil
}

// parseCreateResponse 结构化校验创建响应：success 标志必须存在，
// 成功时必须携带字符串 report id
func parseCreateResponse(body []byte) (*report.Created, error) {
	var cr report.CreateResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, &transport.ValidationError{Reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if !cr.Success {
		reason := cr.Error
		if reason == "" {
			reason = "server reported failure without detail"
		}
		return nil, fmt.Errorf("server rejected report: %s", reason)
	}
	if cr.Data == nil || cr.Data.ID == "" {
		return nil, &transport.ValidationError{Reason: "missing report id"}
	}
	return cr.Data, nil
}

// drainQueueAsync 后台排空离线队列；与当前提交完全独立，
// 自身的失败不向调用方传播
func (c *Coordinator) drainQueueAsync() {
	if c.queue == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("offline queue drain panicked", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		authHeaders, err := transport.AuthHeaders(c.creds)
		if err != nil {
			c.logger.Warn("skip queue drain, cannot build auth headers", "error", err)
			return
		}
		c.queue.ProcessWithAuth(ctx, c.policy.IsRetryableStatus, authHeaders)
	}()
}
