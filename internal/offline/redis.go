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
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisQueueKey 整个队列存为单个 key 下的 JSON 数组，与文件实现同一布局
const redisQueueKey = "bugspotter:offline_queue"

// RedisStore Redis 队列实现；多个 SDK 实例共享同一 Redis 时由调用方保证 key 隔离
type RedisStore struct {
	client *redis.Client
	maxSize int
	mu      sync.Mutex
}

// NewRedisStore 创建 Redis 队列并校验连通性
func NewRedisStore(ctx context.Context, addr string, db int, maxSize int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client, maxSize: maxSize}, nil
}

// Append 实现 Store
func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	for len(entries) >= s.maxSize {
		entries = entries[1:]
	}
	entries = append(entries, entry)
	return s.save(ctx, entries)
}

// Entries 实现 Store
func (s *RedisStore) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Remove 实现 Store
func (s *RedisStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.ID == id {
			entries = append(entries[:i], entries[i+1:]...)
			return s.save(ctx, entries)
		}
	}
	return nil
}

// Bump 实现 Store
func (s *RedisStore) Bump(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Attempts++
			return s.save(ctx, entries)
		}
	}
	return nil
}

// Len 实现 Store
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Close 实现 Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) load(ctx context.Context) ([]Entry, error) {
	data, err := s.client.Get(ctx, redisQueueKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read offline queue from redis: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode offline queue: %w", err)
	}
	return entries, nil
}

func (s *RedisStore) save(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode offline queue: %w", err)
	}
	if err := s.client.Set(ctx, redisQueueKey, data, 0).Err(); err != nil {
		return fmt.Errorf("write offline queue to redis: %w", err)
	}
	return nil
}
