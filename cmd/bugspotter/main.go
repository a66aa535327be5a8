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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/bugspotter"
	"github.com/apexbridge-tech/bugspotter-sdk-sub000/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("bugspotter cli 0.1.0")
	case "config":
		runConfig()
	case "submit":
		runSubmit(args)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: bugspotter <command> [args]")
	fmt.Println("  version                      - 显示版本")
	fmt.Println("  config                       - 显示配置概要")
	fmt.Println("  submit <payload.json> [screenshot] - 提交报告，payload 为 JSON 文件")
}

// loadConfig 读取配置；BUGSPOTTER_CONFIG 指定路径，未设置时找工作目录
func loadConfig() (*config.Config, error) {
	return config.Load(os.Getenv("BUGSPOTTER_CONFIG"))
}

func runConfig() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("endpoint: %s\n", cfg.Endpoint)
	fmt.Printf("project_id: %s\n", cfg.ProjectID)
	fmt.Printf("retry: max=%d base=%s max_delay=%s codes=%v\n",
		cfg.Retry.MaxRetries, cfg.Retry.BaseDelayDuration(), cfg.Retry.MaxDelayDuration(), cfg.Retry.RetryableStatusCodes)
	fmt.Printf("offline: enabled=%v type=%s max=%d\n",
		cfg.Offline.Enabled, cfg.Offline.Type, cfg.Offline.MaxQueueSize)
	fmt.Printf("deduplication: enabled=%v window=%s cache=%d\n",
		cfg.Deduplication.DedupEnabled(), cfg.Deduplication.WindowDuration(), cfg.Deduplication.MaxCacheSize)
}

// payloadFile submit 命令的输入文件格式
type payloadFile struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Report      bugspotter.Data `json:"report"`
}

func runSubmit(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: bugspotter submit <payload.json> [screenshot]\n")
		os.Exit(1)
	}
	payload, err := readPayload(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	client, err := bugspotter.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	result, err := client.Submit(ctx, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("report created: %s\n", result.ReportID)
	for _, u := range result.Uploads {
		fmt.Printf("  %s -> %s\n", u.FileType, u.StorageKey)
	}
	if os.Getenv("BUGSPOTTER_PRINT_METRICS") != "" {
		_ = client.WriteMetrics(os.Stderr)
	}
}

func readPayload(args []string) (*bugspotter.Payload, error) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	var pf payloadFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode payload file: %w", err)
	}
	payload := &bugspotter.Payload{
		Title:       pf.Title,
		Description: pf.Description,
		Report:      pf.Report,
	}
	if len(args) > 1 {
		shot, err := os.ReadFile(args[1])
		if err != nil {
			return nil, fmt.Errorf("read screenshot file: %w", err)
		}
		payload.Screenshot = shot
	}
	return payload, nil
}
