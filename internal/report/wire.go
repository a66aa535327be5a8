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

// 采集服务的线上格式；字段名由服务端 API 约定，保持 camelCase

// CreateRequest 创建报告请求体；只含结构化数据与 artifact 标志位，永不内嵌二进制
type CreateRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Report        Data   `json:"report"`
	HasScreenshot bool   `json:"hasScreenshot"`
	HasReplay     bool   `json:"hasReplay"`
}

// CreateResponse 创建报告响应体
type CreateResponse struct {
	Success bool     `json:"success"`
	Data    *Created `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Created 创建成功时的响应数据；PresignedURLs 仅在请求标记了 artifact 时出现
type Created struct {
	ID            string                  `json:"id"`
	PresignedURLs map[FileType]UploadSlot `json:"presignedUrls,omitempty"`
}

// UploadSlot 单个 artifact 的直传槽位；一次性使用，不持久化
type UploadSlot struct {
	UploadURL  string `json:"uploadUrl"`
	StorageKey string `json:"storageKey"`
}

// ConfirmRequest 上传确认请求体
type ConfirmRequest struct {
	FileType FileType `json:"fileType"`
}

// UploadResult 单个 artifact 的上传结果；各 artifact 相互独立
type UploadResult struct {
	FileType   FileType
	Success    bool
	StorageKey string
	Err        error
}
