package auth

import (
	"os"
	"testing"
	"time"

	"crypto-trading-panel/internal/service"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	service.InitLogger()
	os.Exit(m.Run())
}

func TestNonceSingleUse(t *testing.T) {
	s := NewNonceService(5 * time.Minute)
	address := "0xAbC0000000000000000000000000000000000001"

	nonce := s.Create(address)
	require.NotEmpty(t, nonce)

	// 地址大小写不敏感
	got, ok := s.Get("0xabc0000000000000000000000000000000000001")
	require.True(t, ok)
	assert.Equal(t, nonce, got)

	// 验证成功后作废，拿不到第二次
	s.Invalidate(address)
	_, ok = s.Get(address)
	assert.False(t, ok)
}

func TestNonceExpiry(t *testing.T) {
	s := NewNonceService(5 * time.Minute)
	address := "0xabc0000000000000000000000000000000000002"

	nonce := s.Create(address)
	require.NotEmpty(t, nonce)

	// 把时钟拨到 TTL 之后，Nonce 应当过期并被清掉
	s.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	_, ok := s.Get(address)
	assert.False(t, ok)
}

func TestNonceOverwrite(t *testing.T) {
	s := NewNonceService(5 * time.Minute)
	address := "0xabc0000000000000000000000000000000000003"

	first := s.Create(address)
	second := s.Create(address)
	require.NotEqual(t, first, second)

	got, ok := s.Get(address)
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestJWTRoundtrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Sign(map[string]interface{}{"userId": "user_000001"})
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_000001", claims["userId"])
}

func TestJWTWrongSecretRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	other := NewTokenIssuer("different", time.Hour)

	token, err := issuer.Sign(map[string]interface{}{"userId": "u1"})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestJWTExpiredRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", -time.Minute)

	token, err := issuer.Sign(map[string]interface{}{"userId": "u1"})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Error(t, err)
}

func TestUserRegisterAndLogin(t *testing.T) {
	users := NewUserStore()

	user, err := users.Register("  Alice@Example.COM ", "Alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)

	// 邮箱唯一
	_, err = users.Register("alice@example.com", "Alice Again", "other")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, ok := users.Verify("alice@example.com", "hunter22")
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)

	_, ok = users.Verify("alice@example.com", "wrong")
	assert.False(t, ok)
	_, ok = users.Verify("nobody@example.com", "hunter22")
	assert.False(t, ok)
}

func TestRecoverPersonalSign(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	message := SignMessage("deadbeef")
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	// 模拟 MetaMask：V 输出为 27/28
	sig[64] += 27

	recovered, err := RecoverPersonalSign(message, hexutil.Encode(sig))
	require.NoError(t, err)
	assert.Equal(t, address, recovered)

	// 换一条消息，恢复出的地址对不上
	recovered, err = RecoverPersonalSign(SignMessage("other"), hexutil.Encode(sig))
	require.NoError(t, err)
	assert.NotEqual(t, address, recovered)
}

func TestRecoverPersonalSignMalformed(t *testing.T) {
	_, err := RecoverPersonalSign("msg", "not-hex")
	assert.Error(t, err)

	_, err = RecoverPersonalSign("msg", "0x0102")
	assert.Error(t, err)
}
