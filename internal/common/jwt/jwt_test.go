package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager() *Manager {
	return NewManager(&Config{
		Secret:           "test-secret-key-for-jwt-token-signing",
		AccessExpireTime: 15 * time.Minute,
		Issuer:           "camp-station",
	})
}

func TestManager_GenerateAndParse(t *testing.T) {
	manager := setupTestManager()

	tests := []struct {
		name   string
		userID int64
		role   string
	}{
		{"普通用户", 1001, RoleUser},
		{"营地经营者", 7, RoleOwner},
		{"管理员", 1, RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiresAt, err := manager.GenerateAccessToken(tt.userID, tt.role)
			require.NoError(t, err)
			assert.Equal(t, 3, len(strings.Split(token, ".")))
			assert.Greater(t, expiresAt, time.Now().Unix())

			claims, err := manager.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, "camp-station", claims.Issuer)
		})
	}
}

func TestManager_ParseToken_Errors(t *testing.T) {
	manager := setupTestManager()

	t.Run("格式错误", func(t *testing.T) {
		_, err := manager.ParseToken("not-a-token")
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("已过期", func(t *testing.T) {
		expired := NewManager(&Config{Secret: "test-secret-key-for-jwt-token-signing", AccessExpireTime: -time.Minute, Issuer: "camp-station"})
		token, _, err := expired.GenerateAccessToken(1, RoleUser)
		require.NoError(t, err)
		_, err = manager.ParseToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("签名密钥不同", func(t *testing.T) {
		other := NewManager(&Config{Secret: "another-secret", AccessExpireTime: time.Minute, Issuer: "camp-station"})
		token, _, err := other.GenerateAccessToken(1, RoleUser)
		require.NoError(t, err)
		_, err = manager.ParseToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("签发方不同", func(t *testing.T) {
		other := NewManager(&Config{Secret: "test-secret-key-for-jwt-token-signing", AccessExpireTime: time.Minute, Issuer: "someone-else"})
		token, _, err := other.GenerateAccessToken(1, RoleUser)
		require.NoError(t, err)
		_, err = manager.ParseToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("非 HMAC 签名算法", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Role: RoleAdmin})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = manager.ParseToken(signed)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
