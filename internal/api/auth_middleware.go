// internal/api/auth_middleware.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneStudio/internal/auth"
	"github.com/Corphon/SceneStudio/internal/config"
	"github.com/Corphon/SceneStudio/internal/di"
	"github.com/Corphon/SceneStudio/internal/identity"
	"github.com/Corphon/SceneStudio/internal/utils"
)

// InitializeAuth 根据配置构建令牌签名参数
func InitializeAuth(cfg *config.Config) (*auth.TokenConfig, error) {
	var secret []byte

	if cfg.AuthSecret != "" {
		secret = []byte(cfg.AuthSecret)
	} else if cfg.DebugMode {
		// 开发模式使用固定密钥，避免重启后会话全部失效
		secret = []byte("dev_auth_key_for_testing_purposes_only_")
		utils.GetLogger().Warn("开发模式下使用固定认证密钥，生产环境请通过环境变量设置 AUTH_SECRET_KEY", nil)
	} else {
		generated, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
		secret = generated
	}

	// 密钥长度归一化到32字节
	if len(secret) < 32 {
		padded := make([]byte, 32)
		copy(padded, secret)
		secret = padded
	} else if len(secret) > 32 {
		secret = secret[:32]
	}

	expiration := cfg.TokenExpiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	return &auth.TokenConfig{
		Secret:     secret,
		Expiration: expiration,
	}, nil
}

// AuthMiddleware 校验 Bearer 令牌并把用户标识写入请求上下文
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idp, ok := di.GetContainer().Get("identity").(*identity.Provider)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "身份服务未正确初始化",
			})
			return
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "缺少认证令牌",
				"code":    ErrorTokenMissing,
			})
			return
		}

		token, err := idp.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "无效的认证令牌",
				"code":    ErrorUnauthorized,
			})
			return
		}

		c.Set("user_id", token.UserID)
		c.Set("auth_token", token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// WebSocket 连接无法携带自定义头，退回查询参数
	return c.Query("token")
}

// contextToken 取出中间件写入的令牌声明
func contextToken(c *gin.Context) *auth.Token {
	if value, exists := c.Get("auth_token"); exists {
		if token, ok := value.(*auth.Token); ok {
			return token
		}
	}
	return nil
}
