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

package offline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/transport"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/log"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/metrics"
)

// Queue 离线队列：入队剥离凭据，排空时每条目做一次网络尝试
type Queue struct {
	store       Store
	client      *resty.Client
	logger      *log.Logger
	maxAttempts int
}

// NewQueue 创建队列；maxAttempts<=0 时默认 10
func NewQueue(store Store, client *resty.Client, logger *log.Logger, maxAttempts int) *Queue {
	if logger == nil {
		logger = log.Nop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Queue{
		store:       store,
		client:      client,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Enqueue 将失败请求入队待重放。敏感请求头在此剥离；
// 非安全端点直接跳过不入队（重放时也永远无法安全发出）。
func (q *Queue) Enqueue(ctx context.Context, endpoint string, body []byte, headers map[string]string) error {
	if !transport.IsSecureEndpoint(endpoint) {
		q.logger.Warn("skip enqueue of insecure endpoint", "endpoint", endpoint)
		return nil
	}
	entry := Entry{
		ID:         uuid.New().String(),
		Endpoint:   endpoint,
		Body:       json.RawMessage(body),
		Headers:    SanitizeHeaders(headers),
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.store.Append(ctx, entry); err != nil {
		return err
	}
	q.logger.Info("request queued for later replay", "id", entry.ID, "endpoint", endpoint)
	q.updateDepth(ctx)
	return nil
}

// ProcessWithAuth 排空队列：每条目一次网络尝试，认证头由调用方现场生成后合入。
// 成功即删；网络失败或可重试状态保留并递增计数；永久不可重试（非安全端点、
// 不可重试状态码、计数超限）直接删除。
func (q *Queue) ProcessWithAuth(ctx context.Context, isRetryable func(int) bool, authHeaders map[string]string) {
	entries, err := q.store.Entries(ctx)
	if err != nil {
		q.logger.Error("read offline queue failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return
		}
		q.replayOne(ctx, entry, isRetryable, authHeaders)
	}
	q.updateDepth(ctx)
}

func (q *Queue) replayOne(ctx context.Context, entry Entry, isRetryable func(int) bool, authHeaders map[string]string) {
	if !transport.IsSecureEndpoint(entry.Endpoint) {
		q.logger.Warn("dropping queued request to insecure endpoint", "id", entry.ID, "endpoint", entry.Endpoint)
		q.dropEntry(ctx, entry)
		return
	}
	if entry.Attempts >= q.maxAttempts {
		q.logger.Warn("dropping queued request after too many attempts", "id", entry.ID, "attempts", entry.Attempts)
		q.dropEntry(ctx, entry)
		return
	}

	headers := make(map[string]string, len(entry.Headers)+len(authHeaders))
	for k, v := range entry.Headers {
		headers[k] = v
	}
	for k, v := range authHeaders {
		headers[k] = v
	}

	resp, err := q.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody([]byte(entry.Body)).
		Post(entry.Endpoint)
	if err != nil {
		q.logger.Warn("queued request replay failed", "id", entry.ID, "error", err)
		q.failEntry(ctx, entry)
		return
	}
	switch {
	case resp.IsSuccess():
		if err := q.store.Remove(ctx, entry.ID); err != nil {
			q.logger.Error("remove replayed entry failed", "id", entry.ID, "error", err)
			return
		}
		q.logger.Info("queued request replayed", "id", entry.ID)
		metrics.QueueReplayTotal.WithLabelValues("success").Inc()
	case isRetryable(resp.StatusCode()):
		q.logger.Warn("queued request replay got retryable status", "id", entry.ID, "status", resp.StatusCode())
		q.failEntry(ctx, entry)
	default:
		// 不可重试状态码说明该请求永远发不成功，保留只会反复失败
		q.logger.Warn("dropping queued request after non-retryable status", "id", entry.ID, "status", resp.StatusCode())
		q.dropEntry(ctx, entry)
	}
}

func (q *Queue) failEntry(ctx context.Context, entry Entry) {
	if err := q.store.Bump(ctx, entry.ID); err != nil {
		q.logger.Error("bump entry attempts failed", "id", entry.ID, "error", err)
	}
	metrics.QueueReplayTotal.WithLabelValues("failed").Inc()
}

func (q *Queue) dropEntry(ctx context.Context, entry Entry) {
	if err := q.store.Remove(ctx, entry.ID); err != nil {
		q.logger.Error("drop entry failed", "id", entry.ID, "error", err)
	}
	metrics.QueueReplayTotal.WithLabelValues("dropped").Inc()
}

func (q *Queue) updateDepth(ctx context.Context) {
	if n, err := q.store.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}

// Close 释放底层存储
func (q *Queue) Close() error {
	return q.store.Close()
}
