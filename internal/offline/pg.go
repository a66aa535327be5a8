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

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore PostgreSQL 队列实现，使用 bugspotter_offline_queue 表；
// 区别于单 blob 布局，按行存储，FIFO 由 enqueued_at 排序保证
type PgStore struct {
	pool    *pgxpool.Pool
	maxSize int
}

// NewPgStore 创建基于 PostgreSQL 的队列；表不存在时自动创建
func NewPgStore(ctx context.Context, dsn string, maxSize int) (*PgStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS bugspotter_offline_queue (
  id TEXT PRIMARY KEY,
  endpoint TEXT NOT NULL,
  body JSONB NOT NULL,
  headers JSONB,
  enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  attempts INT NOT NULL DEFAULT 0
)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure offline queue table: %w", err)
	}
	return &PgStore{pool: pool, maxSize: maxSize}, nil
}

// Append 实现 Store；容量满时先删最旧行
func (s *PgStore) Append(ctx context.Context, entry Entry) error {
	headersJSON, err := json.Marshal(entry.Headers)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM bugspotter_offline_queue`).Scan(&count); err != nil {
		return err
	}
	if count >= s.maxSize {
		if _, err := tx.Exec(ctx,
			`DELETE FROM bugspotter_offline_queue WHERE id IN (
  SELECT id FROM bugspotter_offline_queue ORDER BY enqueued_at LIMIT $1
)`, count-s.maxSize+1); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO bugspotter_offline_queue (id, endpoint, body, headers, enqueued_at, attempts)
 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Endpoint, []byte(entry.Body), headersJSON, entry.EnqueuedAt, entry.Attempts,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Entries 实现 Store
func (s *PgStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, endpoint, body, headers, enqueued_at, attempts
 FROM bugspotter_offline_queue ORDER BY enqueued_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var body, headers []byte
		if err := rows.Scan(&e.ID, &e.Endpoint, &body, &headers, &e.EnqueuedAt, &e.Attempts); err != nil {
			return nil, err
		}
		e.Body = json.RawMessage(body)
		if len(headers) > 0 {
			_ = json.Unmarshal(headers, &e.Headers)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove 实现 Store
func (s *PgStore) Remove(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM bugspotter_offline_queue WHERE id = $1`, id)
	return err
}

// Bump 实现 Store
func (s *PgStore) Bump(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bugspotter_offline_queue SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

// Len 实现 Store
func (s *PgStore) Len(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM bugspotter_offline_queue`).Scan(&count)
	return count, err
}

// Close 实现 Store
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}
