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

package transport

import (
	"strings"
)

// Credentials 凭据描述符；只在内存中流转，永不随队列条目落盘
type Credentials struct {
	APIKey    string
	ProjectID string
}

// AuthHeaders 从凭据派生认证请求头；每次需要时重新生成，不做缓存。
// APIKey 为空时返回 AuthenticationError（不可重试）。
func AuthHeaders(creds Credentials) (map[string]string, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, &AuthenticationError{Reason: "api key is missing"}
	}
	headers := map[string]string{
		"X-API-Key": creds.APIKey,
	}
	if creds.ProjectID != "" {
		headers["X-Project-ID"] = creds.ProjectID
	}
	return headers, nil
}
