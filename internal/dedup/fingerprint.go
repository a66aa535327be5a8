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

package dedup

import (
	"strconv"
	"strings"
)

// Fingerprint 计算提交内容指纹：规整化 title/description 后与错误签名
// 以竖线拼接，djb2 哈希，base-36 编码。非加密哈希，碰撞按"疑似重复"处理。
func Fingerprint(title, description string, errorSignatures []string) string {
	parts := make([]string, 0, 2+len(errorSignatures))
	parts = append(parts, normalize(title), normalize(description))
	parts = append(parts, errorSignatures...)
	return strconv.FormatUint(djb2(strings.Join(parts, "|")), 36)
}

// normalize 去首尾空白并转小写
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// djb2 Bernstein 字符串哈希（h*33+c 变体）
func djb2(s string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(s); i++ {
		h = h<<5 + h + uint64(s[i])
	}
	return h
}
