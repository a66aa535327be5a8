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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry SDK 专用注册表，避免污染宿主进程的默认注册表
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SubmissionTotal, SubmissionDuration,
		RetryAttemptTotal, BackoffSeconds,
		QueueDepth, QueueReplayTotal,
		UploadBytesTotal, UploadDuration,
		DedupHitTotal,
	)
}

// SubmissionTotal 提交总数（按结果）
var SubmissionTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bugspotter_submission_total",
		Help: "提交总数（按结果）",
	},
	[]string{"outcome"}, // success | failed | duplicate | queued
)

// SubmissionDuration 提交耗时（秒），含重试与上传
var SubmissionDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "bugspotter_submission_duration_seconds",
		Help:    "提交耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// RetryAttemptTotal 重试次数总数（不含首次尝试）
var RetryAttemptTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "bugspotter_retry_attempt_total",
		Help: "重试次数总数",
	},
)

// BackoffSeconds 退避等待时长（秒）
var BackoffSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "bugspotter_backoff_seconds",
		Help:    "退避等待时长（秒）",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30},
	},
)

// QueueDepth 离线队列当前条目数
var QueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "bugspotter_offline_queue_depth",
		Help: "离线队列当前条目数",
	},
)

// QueueReplayTotal 离线队列重放总数（按结果）
var QueueReplayTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bugspotter_queue_replay_total",
		Help: "离线队列重放总数（按结果）",
	},
	[]string{"outcome"}, // success | failed | dropped
)

// UploadBytesTotal 上传字节总数（按 artifact 类型）
var UploadBytesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bugspotter_upload_bytes_total",
		Help: "上传字节总数（按 artifact 类型）",
	},
	[]string{"file_type"}, // screenshot | replay | attachment
)

// UploadDuration 单 artifact 上传耗时（秒）
var UploadDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "bugspotter_upload_duration_seconds",
		Help:    "单 artifact 上传耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"file_type"},
)

// DedupHitTotal 去重命中总数（按命中来源）
var DedupHitTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bugspotter_dedup_hit_total",
		Help: "去重命中总数",
	},
	[]string{"kind"}, // in_flight | window
)

// WritePrometheus 将 Prometheus 文本格式写入 w（宿主进程可挂到自己的 /metrics）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
