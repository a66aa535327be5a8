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
	"net/url"
)

// IsSecureEndpoint 端点安全策略：https 放行；http 仅放行 localhost/127.0.0.1（本地开发例外）
func IsSecureEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	default:
		return false
	}
}

// ValidateEndpoint 不安全端点返回 InsecureEndpointError；在任何网络请求之前调用
func ValidateEndpoint(endpoint string) error {
	if !IsSecureEndpoint(endpoint) {
		return &InsecureEndpointError{Endpoint: endpoint}
	}
	return nil
}

// BaseURL 取端点的 scheme://host 部分；确认接口等挂在服务根路径下
func BaseURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" {
		return endpoint
	}
	return u.Scheme + "://" + u.Host
}
