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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config SDK 配置结构体
type Config struct {
	Endpoint      string              `mapstructure:"endpoint"`
	ProjectID     string              `mapstructure:"project_id"`
	APIKey        string              `mapstructure:"api_key"`
	Secrets       SecretsConfig       `mapstructure:"secrets"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Offline       OfflineConfig       `mapstructure:"offline"`
	Deduplication DeduplicationConfig `mapstructure:"deduplication"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Log           LogConfig           `mapstructure:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// SecretsConfig API Key 来源配置；provider 为空时直接使用 api_key 字段
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | vault | 空
	Key      string            `mapstructure:"key"`      // env 变量名或 vault secret key
	Vault    map[string]string `mapstructure:"vault"`    // address / token / path_prefix
}

// RetryConfig 重试策略配置
type RetryConfig struct {
	MaxRetries           int    `mapstructure:"max_retries"`
	BaseDelay            string `mapstructure:"base_delay"` // 如 "1s"，空则默认 1s
	MaxDelay             string `mapstructure:"max_delay"`  // 如 "30s"，空则默认 30s
	RetryableStatusCodes []int  `mapstructure:"retryable_status_codes"`
}

// OfflineConfig 离线队列配置
type OfflineConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Type         string `mapstructure:"type"` // memory | file | redis | postgres
	Path         string `mapstructure:"path"` // type=file 时的落盘路径
	DSN          string `mapstructure:"dsn"`  // type=postgres 时必填
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisDB      int    `mapstructure:"redis_db"`
	MaxQueueSize int    `mapstructure:"max_queue_size"`
	MaxAttempts  int    `mapstructure:"max_attempts"` // 单条目重放上限，超过即丢弃，<=0 用默认 10
}

// DeduplicationConfig 去重配置
type DeduplicationConfig struct {
	Enabled      *bool  `mapstructure:"enabled"` // 未配置时默认 true
	Window       string `mapstructure:"window"`  // 如 "60s"，空则默认 60s
	MaxCacheSize int    `mapstructure:"max_cache_size"`
}

// RateLimitConfig 提交限流配置；QPS<=0 表示不限流
type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load 加载配置：先找 configPath，再找工作目录下 bugspotter.yaml，环境变量 BUGSPOTTER_ 前缀覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("bugspotter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("BUGSPOTTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 允许无配置文件，全部走默认值 + 环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults 各项默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.retryable_status_codes", []int{502, 503, 504, 429})
	v.SetDefault("offline.enabled", false)
	v.SetDefault("offline.type", "memory")
	v.SetDefault("offline.max_queue_size", 50)
	v.SetDefault("offline.max_attempts", 10)
	v.SetDefault("deduplication.window", "60s")
	v.SetDefault("deduplication.max_cache_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// BaseDelayDuration 解析 base_delay，非法或为空时返回 1s
func (c RetryConfig) BaseDelayDuration() time.Duration {
	return parseDuration(c.BaseDelay, time.Second)
}

// MaxDelayDuration 解析 max_delay，非法或为空时返回 30s
func (c RetryConfig) MaxDelayDuration() time.Duration {
	return parseDuration(c.MaxDelay, 30*time.Second)
}

// WindowDuration 解析去重窗口，非法或为空时返回 60s
func (c DeduplicationConfig) WindowDuration() time.Duration {
	return parseDuration(c.Window, 60*time.Second)
}

// DedupEnabled 去重是否启用，未配置时默认 true
func (c DeduplicationConfig) DedupEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// parseDuration 解析时长字符串，失败时返回 fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
