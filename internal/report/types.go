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

package report

import (
	"time"
)

// Payload 一次提交的完整输入；管线只读，所有权归调用方
type Payload struct {
	Title       string
	Description string
	Report      Data

	// 以下为带外上传的二进制 artifact，管线视作不透明字节；nil 表示不存在
	Screenshot []byte
	Replay     []byte
	Attachment []byte
}

// Data 诊断数据主体；只含控制台/网络/元数据，二进制内容一律走 artifact 通道
type Data struct {
	Console  []ConsoleEntry         `json:"console,omitempty"`
	Network  []NetworkEntry         `json:"network,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ConsoleEntry 一条控制台记录（由外部拦截器产出，已脱敏）
type ConsoleEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkEntry 一条网络请求记录（由外部拦截器产出，已脱敏）
type NetworkEntry struct {
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorSignatures 提取去重指纹用的错误签名：error 级控制台记录的 message+stack
func (d Data) ErrorSignatures() []string {
	var sigs []string
	for _, e := range d.Console {
		if e.Level != "error" {
			continue
		}
		sig := e.Message
		if e.Stack != "" {
			sig += "\n" + e.Stack
		}
		sigs = append(sigs, sig)
	}
	return sigs
}

// HasScreenshot 是否携带截图 artifact
func (p *Payload) HasScreenshot() bool { return len(p.Screenshot) > 0 }

// HasReplay 是否携带回放 artifact
func (p *Payload) HasReplay() bool { return len(p.Replay) > 0 }

// HasAttachment 是否携带附件 artifact
func (p *Payload) HasAttachment() bool { return len(p.Attachment) > 0 }

// FileType 带外上传的 artifact 类型
type FileType string

const (
	FileTypeScreenshot FileType = "screenshot"
	FileTypeReplay     FileType = "replay"
	FileTypeAttachment FileType = "attachment"
)

// Artifacts 按类型返回待上传的 artifact 字节；不含 nil 项
func (p *Payload) Artifacts() map[FileType][]byte {
	m := make(map[FileType][]byte)
	if p.HasScreenshot() {
		m[FileTypeScreenshot] = p.Screenshot
	}
	if p.HasReplay() {
		m[FileTypeReplay] = p.Replay
	}
	if p.HasAttachment() {
		m[FileTypeAttachment] = p.Attachment
	}
	return m
}

// Redactor 脱敏钩子；引擎实现在管线之外，默认不做任何处理
type Redactor interface {
	// Redact 返回脱敏后的数据主体；实现不得修改传入值
	Redact(data Data) (Data, error)
}
