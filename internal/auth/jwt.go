package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer 负责 HS256 JWT 的签发和校验
type TokenIssuer struct {
	secret  []byte
	expires time.Duration
}

// NewTokenIssuer 构造签发器
func NewTokenIssuer(secret string, expires time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expires: expires}
}

// Sign 把业务字段连同 iat/exp 一起签成 JWT
func (t *TokenIssuer) Sign(payload map[string]interface{}) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(t.expires).Unix(),
	}
	for k, v := range payload {
		claims[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify 校验并解出 JWT 载荷，失败返回 error
func (t *TokenIssuer) Verify(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
