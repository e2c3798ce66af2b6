package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken 表示邮箱已被注册
var ErrEmailTaken = errors.New("email already in use")

// User 是注册用户的对外视图
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type userRecord struct {
	User
	passwordHash []byte
	createdAt    time.Time
}

// UserStore 是内存用户表，密码只存 bcrypt 哈希
type UserStore struct {
	mu      sync.Mutex
	byEmail map[string]*userRecord
	seq     int
}

// NewUserStore 构造用户表
func NewUserStore() *UserStore {
	return &UserStore{byEmail: make(map[string]*userRecord)}
}

// Register 注册新用户，邮箱统一小写去空格后作为唯一键
func (s *UserStore) Register(email, name, password string) (User, error) {
	normEmail := strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[normEmail]; ok {
		return User{}, ErrEmailTaken
	}
	s.seq++
	record := &userRecord{
		User: User{
			ID:    fmt.Sprintf("user_%06d", s.seq),
			Email: normEmail,
			Name:  strings.TrimSpace(name),
		},
		passwordHash: hash,
		createdAt:    time.Now(),
	}
	s.byEmail[normEmail] = record
	return record.User, nil
}

// Verify 校验邮箱密码，成功返回用户
func (s *UserStore) Verify(email, password string) (User, bool) {
	normEmail := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	record, ok := s.byEmail[normEmail]
	s.mu.Unlock()
	if !ok {
		return User{}, false
	}

	if bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)) != nil {
		return User{}, false
	}
	return record.User, true
}
