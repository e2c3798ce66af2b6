package auth

import (
	"net/http"
	"strings"

	"crypto-trading-panel/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 聚合鉴权相关的 HTTP 处理器
type Handlers struct {
	Nonces *NonceService
	Users  *UserStore
	Tokens *TokenIssuer
}

// NewHandlers 构造鉴权处理器
func NewHandlers(nonces *NonceService, users *UserStore, tokens *TokenIssuer) *Handlers {
	return &Handlers{Nonces: nonces, Users: users, Tokens: tokens}
}

// RegisterRoutes 挂载 /auth 下的全部路由
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/nonce", h.GetNonce)
	rg.POST("/verify", h.VerifySignature)
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
}

// GetNonce 处理 GET /auth/nonce?address=0x...
// 生成 Nonce 并把前端需要签名的消息一并返回
func (h *Handlers) GetNonce(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query param required"})
		return
	}

	nonce := h.Nonces.Create(address)
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": SignMessage(nonce)})
}

type verifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// VerifySignature 处理 POST /auth/verify
// 校验签名确实出自该地址对服务端 Nonce 消息的签名，通过后签发 JWT
func (h *Handlers) VerifySignature(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Address == "" || req.Signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and signature required"})
		return
	}

	nonce, ok := h.Nonces.Get(req.Address)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid nonce for address (maybe expired)"})
		return
	}

	recovered, err := RecoverPersonalSign(SignMessage(nonce), req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}
	if !strings.EqualFold(recovered.Hex(), req.Address) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature does not match address"})
		return
	}

	token, err := h.Tokens.Sign(map[string]interface{}{"address": recovered.Hex()})
	if err != nil {
		service.Logger.Error("JWT sign failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// 验证成功后作废 Nonce，阻断重放
	h.Nonces.Invalidate(req.Address)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// Register 处理 POST /auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Email == "" || req.Password == "" || req.FullName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, password and fullName required"})
		return
	}

	user, err := h.Users.Register(req.Email, req.FullName, req.Password)
	if err == ErrEmailTaken {
		c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
		return
	}
	if err != nil {
		service.Logger.Error("User registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	token, err := h.Tokens.Sign(map[string]interface{}{"userId": user.ID})
	if err != nil {
		service.Logger.Error("JWT sign failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 处理 POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, ok := h.Users.Verify(req.Email, req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.Tokens.Sign(map[string]interface{}{"userId": user.ID})
	if err != nil {
		service.Logger.Error("JWT sign failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
