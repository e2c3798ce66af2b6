package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func StringToFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func StringToInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	return int(v), err
}

// NewClientID 生成订单的关联 ID（客户端未提供时由服务端补发）
func NewClientID() string {
	return "ord_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// NewSessionID 生成 WebSocket 会话 ID
func NewSessionID() string {
	return "ws_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Round6 保留 6 位小数，用于涨跌幅等展示字段
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
