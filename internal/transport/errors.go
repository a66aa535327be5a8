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
	"errors"
	"fmt"
)

// AuthenticationError 凭据缺失或不完整；不重试、不入离线队列
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// InsecureEndpointError 非 HTTPS 且非 localhost 的端点；发起任何网络请求前即拒绝
type InsecureEndpointError struct {
	Endpoint string
}

func (e *InsecureEndpointError) Error() string {
	return fmt.Sprintf("insecure endpoint rejected: %s (only https or localhost allowed)", e.Endpoint)
}

// TransportError 连接层失败（未收到响应）；按策略重试，耗尽后可入离线队列
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError 非 2xx 响应；仅可重试状态码会按策略重试，其余立即上抛
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// ValidationError 服务端响应结构不合法；致命，不重试
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid server response format: %s", e.Reason)
}

// IsAuthError err 链上是否存在 AuthenticationError
func IsAuthError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
