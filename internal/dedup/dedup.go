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

package dedup

import (
	"fmt"
	"sync"
	"time"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/log"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/metrics"
)

// DuplicateError 窗口期内的重复提交；在任何网络请求之前返回
type DuplicateError struct {
	Fingerprint string
	Wait        time.Duration
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate report, please wait %d seconds before submitting again", int(e.Wait.Seconds()))
}

// Deduplicator 重复提交防护：in-flight 集合保证同指纹同时至多一次网络提交，
// 完成记录缓存在窗口期内拒绝完全相同的内容。UX 防护，不是安全边界。
type Deduplicator struct {
	window       time.Duration
	maxCacheSize int
	logger       *log.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	records  map[string]time.Time
	order    []string // records 的插入顺序，容量满时先逐出最旧

	stopOnce sync.Once
	stopCh   chan struct{}

	// now 测试可替换
	now func() time.Time
}

// NewDeduplicator 创建去重器并启动后台清扫（周期为窗口的一半）
func NewDeduplicator(window time.Duration, maxCacheSize int, logger *log.Logger) *Deduplicator {
	if window <= 0 {
		window = 60 * time.Second
	}
	if maxCacheSize <= 0 {
		maxCacheSize = 100
	}
	if logger == nil {
		logger = log.Nop()
	}
	d := &Deduplicator{
		window:       window,
		maxCacheSize: maxCacheSize,
		logger:       logger,
		inFlight:     make(map[string]struct{}),
		records:      make(map[string]time.Time),
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
	go d.sweepLoop()
	return d
}

// IsDuplicate 指纹正在提交中，或窗口期内已有完成记录
func (d *Deduplicator) IsDuplicate(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.inFlight[fingerprint]; ok {
		metrics.DedupHitTotal.WithLabelValues("in_flight").Inc()
		return true
	}
	if seen, ok := d.records[fingerprint]; ok && d.now().Sub(seen) < d.window {
		metrics.DedupHitTotal.WithLabelValues("window").Inc()
		return true
	}
	return false
}

// MarkInProgress 将指纹加入 in-flight 集合；已在集合中时返回 false。
// 必须在首个网络 I/O 之前同步调用，这是同指纹互斥的全部依据。
func (d *Deduplicator) MarkInProgress(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.inFlight[fingerprint]; ok {
		return false
	}
	d.inFlight[fingerprint] = struct{}{}
	return true
}

// MarkComplete 将指纹移出 in-flight 集合；成功失败都必须走到（defer 保证）
func (d *Deduplicator) MarkComplete(fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, fingerprint)
}

// RecordSubmission 提交结束后写入完成记录；缓存满时 FIFO 逐出最旧
func (d *Deduplicator) RecordSubmission(fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.records[fingerprint]; !exists {
		for len(d.records) >= d.maxCacheSize && len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.records, oldest)
		}
		d.order = append(d.order, fingerprint)
	}
	d.records[fingerprint] = d.now()
}

// Window 去重窗口时长，供错误提示换算秒数
func (d *Deduplicator) Window() time.Duration {
	return d.window
}

// Stop 停止后台清扫；幂等
func (d *Deduplicator) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

func (d *Deduplicator) sweepLoop() {
	ticker := time.NewTicker(d.window / 2)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

// sweep 移除窗口外的完成记录
func (d *Deduplicator) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.window)
	kept := d.order[:0]
	for _, fp := range d.order {
		if seen, ok := d.records[fp]; ok && seen.After(cutoff) {
			kept = append(kept, fp)
		} else {
			delete(d.records, fp)
		}
	}
	d.order = kept
}
