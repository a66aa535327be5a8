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
	"fmt"
	"strings"
	"time"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/config"
)

// Entry 一条持久化的待重放请求；headers 只含非敏感项，认证头在重放时重新生成
type Entry struct {
	ID         string            `json:"id"`
	Endpoint   string            `json:"endpoint"`
	Body       json.RawMessage   `json:"body"`
	Headers    map[string]string `json:"headers,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	Attempts   int               `json:"attempts"`
}

// Store 离线队列持久化接口；FIFO，有界，容量满时先逐出最旧条目再追加
type Store interface {
	// Append 追加条目；容量满时内部先逐出最旧条目
	Append(ctx context.Context, entry Entry) error
	// Entries 按入队顺序返回全部条目
	Entries(ctx context.Context) ([]Entry, error)
	// Remove 删除指定条目；不存在时不报错
	Remove(ctx context.Context, id string) error
	// Bump 条目重放失败后递增尝试计数
	Bump(ctx context.Context, id string) error
	// Len 当前条目数
	Len(ctx context.Context) (int, error)
	// Close 释放底层资源
	Close() error
}

// sensitiveHeaders 入队前必须剥离的请求头（大小写不敏感匹配）
var sensitiveHeaders = map[string]struct{}{
	"x-api-key":      {},
	"authorization":  {},
	"x-auth-token":   {},
	"x-access-token": {},
	"cookie":         {},
	"set-cookie":     {},
}

// SanitizeHeaders 返回去掉敏感项后的请求头副本；队列落盘状态永不携带凭据
func SanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := sensitiveHeaders[strings.ToLower(k)]; sensitive {
			continue
		}
		out[k] = v
	}
	return out
}

// NewStore 根据配置创建队列存储
func NewStore(ctx context.Context, cfg config.OfflineConfig) (Store, error) {
	maxSize := cfg.MaxQueueSize
	if maxSize <= 0 {
		maxSize = 50
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(maxSize), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("offline queue type is file but path is empty")
		}
		return NewFileStore(cfg.Path, maxSize), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("offline queue type is redis but redis_addr is empty")
		}
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, maxSize)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("offline queue type is postgres but dsn is empty")
		}
		return NewPgStore(ctx, cfg.DSN, maxSize)
	default:
		return nil, fmt.Errorf("unsupported offline queue type: %s", cfg.Type)
	}
}
