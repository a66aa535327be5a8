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

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/report"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/internal/transport"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/log"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/metrics"
)

// ProgressFunc 上传进度回调
type ProgressFunc func(loaded, total int64, percentage float64)

// TransferError artifact 字节传输失败；报告已创建但该 artifact 未写入存储
type TransferError struct {
	FileType report.FileType
	ReportID string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s upload failed for report %s: %v", e.FileType, e.ReportID, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ConfirmError 传输成功但确认失败；字节已写入存储而后端不知情，
// 单列一类便于运维对账孤儿存储对象
type ConfirmError struct {
	FileType report.FileType
	ReportID string
	Err      error
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("%s uploaded but confirmation failed for report %s: %v", e.FileType, e.ReportID, e.Err)
}

func (e *ConfirmError) Unwrap() error { return e.Err }

// Orchestrator 三段式带外上传：对每个 artifact 先 PUT 原始字节到签名 URL，
// 再调后端确认接口；各 artifact 相互独立，一个失败不阻塞其余
type Orchestrator struct {
	client   *resty.Client
	baseURL  string
	creds    transport.Credentials
	logger   *log.Logger
	progress ProgressFunc
}

// NewOrchestrator 创建上传编排器；baseURL 为确认接口所在服务根地址
func NewOrchestrator(client *resty.Client, baseURL string, creds transport.Credentials, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		client:  client,
		baseURL: baseURL,
		creds:   creds,
		logger:  logger,
	}
}

// SetProgress 设置进度回调；nil 表示不上报
func (o *Orchestrator) SetProgress(fn ProgressFunc) {
	o.progress = fn
}

// uploadOrder 固定遍历顺序，保证行为可复现
var uploadOrder = []report.FileType{
	report.FileTypeScreenshot,
	report.FileTypeReplay,
	report.FileTypeAttachment,
}

// UploadFiles 上传全部 artifact 并逐个确认。任一 artifact 失败时整体返回
// 聚合错误（错误文本含已创建的 report id），但不中断其余 artifact 的尝试。
func (o *Orchestrator) UploadFiles(ctx context.Context, reportID string, artifacts map[report.FileType][]byte, slots map[report.FileType]report.UploadSlot) ([]report.UploadResult, error) {
	var results []report.UploadResult
	var errs []error
	for _, ft := range uploadOrder {
		data, ok := artifacts[ft]
		if !ok {
			continue
		}
		res := o.uploadOne(ctx, reportID, ft, data, slots)
		results = append(results, res)
		if !res.Success {
			errs = append(errs, res.Err)
		}
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("report %s created but artifact upload failed: %w", reportID, errors.Join(errs...))
	}
	return results, nil
}

func (o *Orchestrator) uploadOne(ctx context.Context, reportID string, ft report.FileType, data []byte, slots map[report.FileType]report.UploadSlot) report.UploadResult {
	slot, ok := slots[ft]
	if !ok {
		return report.UploadResult{
			FileType: ft,
			Err:      &TransferError{FileType: ft, ReportID: reportID, Err: fmt.Errorf("no upload slot provided")},
		}
	}

	start := time.Now()
	if err := o.transfer(ctx, slot.UploadURL, data); err != nil {
		o.logger.Error("artifact transfer failed", "file_type", ft, "report_id", reportID, "error", err)
		return report.UploadResult{
			FileType: ft,
			Err:      &TransferError{FileType: ft, ReportID: reportID, Err: err},
		}
	}
	metrics.UploadBytesTotal.WithLabelValues(string(ft)).Add(float64(len(data)))

	if err := o.confirm(ctx, reportID, ft); err != nil {
		o.logger.Error("artifact confirmation failed", "file_type", ft, "report_id", reportID, "error", err)
		return report.UploadResult{
			FileType: ft,
			Err:      &ConfirmError{FileType: ft, ReportID: reportID, Err: err},
		}
	}

	metrics.UploadDuration.WithLabelValues(string(ft)).Observe(time.Since(start).Seconds())
	o.logger.Info("artifact uploaded", "file_type", ft, "report_id", reportID, "bytes", len(data))
	return report.UploadResult{FileType: ft, Success: true, StorageKey: slot.StorageKey}
}

// transfer 直传原始字节到签名 URL。请求经 http.Request 手工构造：
// 签名只覆盖裸 PUT，客户端不得自动补 Content-Type 之类的请求头。
func (o *Orchestrator) transfer(ctx context.Context, uploadURL string, data []byte) error {
	total := int64(len(data))
	var body io.Reader = bytes.NewReader(data)
	if o.progress != nil {
		body = &progressReader{r: body, total: total, fn: o.progress}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return err
	}
	req.ContentLength = total

	resp, err := o.client.GetClient().Do(req)
	if err != nil {
		return &transport.TransportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &transport.HTTPError{StatusCode: resp.StatusCode, Body: string(text)}
	}
	if o.progress != nil {
		o.progress(total, total, 100)
	}
	return nil
}

// confirm 调后端确认接口；只有确认成功 artifact 才算持久化完成
func (o *Orchestrator) confirm(ctx context.Context, reportID string, ft report.FileType) error {
	authHeaders, err := transport.AuthHeaders(o.creds)
	if err != nil {
		return err
	}
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeaders(authHeaders).
		SetHeader("Content-Type", "application/json").
		SetBody(report.ConfirmRequest{FileType: ft}).
		Post(fmt.Sprintf("%s/api/v1/reports/%s/confirm-upload", o.baseURL, reportID))
	if err != nil {
		return &transport.TransportError{Err: err}
	}
	if !resp.IsSuccess() {
		return &transport.HTTPError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	// 非 JSON 的确认响应按失败处理：空对象式的宽容会掩盖孤儿对象
	var ack struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(resp.Body(), &ack); err != nil {
		return fmt.Errorf("confirmation response is not valid JSON: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("confirmation rejected by server")
	}
	return nil
}

// progressReader 读取时上报进度
type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		pct := float64(0)
		if p.total > 0 {
			pct = float64(p.loaded) / float64(p.total) * 100
		}
		p.fn(p.loaded, p.total, pct)
	}
	return n, err
}
