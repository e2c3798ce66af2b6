// Package auth 实现面板的鉴权协作方：
// 钱包签名登录（Nonce + personal_sign 恢复）、邮箱密码注册登录、JWT 签发校验
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type nonceEntry struct {
	value     string
	expiresAt time.Time
}

// NonceService 维护 address -> 一次性 Nonce 的内存映射
// Nonce 带 TTL，验证成功或过期后删除，防止重放
type NonceService struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	ttl     time.Duration
	now     func() time.Time // 可注入，测试时用虚拟时钟
}

// NewNonceService 构造 Nonce 服务
func NewNonceService(ttl time.Duration) *NonceService {
	return &NonceService{
		entries: make(map[string]nonceEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create 为地址生成并登记一个新 Nonce（16 字节随机数的 hex）
func (s *NonceService) Create(address string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	nonce := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[strings.ToLower(address)] = nonceEntry{
		value:     nonce,
		expiresAt: s.now().Add(s.ttl),
	}
	return nonce
}

// Get 取出地址当前有效的 Nonce，不存在或已过期返回 false
// 过期条目顺手删除
func (s *NonceService) Get(address string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(address)
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return entry.value, true
}

// Invalidate 删除地址的 Nonce，验证成功后必须调用以阻断重放
func (s *NonceService) Invalidate(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, strings.ToLower(address))
}

// SignMessage 构造用户在钱包里签名的可读消息
// 保持稳定格式，验证时要用同一条消息重算
func SignMessage(nonce string) string {
	return "Sign this message to authenticate with the app. Nonce: " + nonce
}
