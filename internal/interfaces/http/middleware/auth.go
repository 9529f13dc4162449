// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/interfaces/http/dto"
	"match-intel-api/pkg/logger"
	"match-intel-api/pkg/utils"
)

const actorKey = "actor"

// AuthConfig 认证配置
type AuthConfig struct {
	Secret string
	Issuer string
	// SkipPaths 按前缀跳过认证
	SkipPaths []string
	Enabled   bool
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// Auth 解析 Bearer 令牌并注入 entity.Actor
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		if !cfg.Enabled || skipped(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			dto.AbortWithError(c, 401, "missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			dto.AbortWithError(c, 401, "invalid authorization format")
			return
		}

		claims, err := jwtManager.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "token expired"
			}
			dto.AbortWithError(c, 401, msg)
			return
		}

		role := entity.UserRole(claims.Role)
		if !role.Valid() {
			dto.AbortWithError(c, 401, "invalid token role")
			return
		}

		actor := entity.Actor{
			UserID: claims.UserID(),
			OrgID:  claims.OrgID,
			Role:   role,
			TeamID: claims.TeamID,
		}
		c.Set(actorKey, actor)

		ctx := logger.WithContext(c.Request.Context(), logger.OrgIDKey, actor.OrgID)
		ctx = logger.WithContext(ctx, logger.UserIDKey, actor.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func skipped(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// ActorFromGin 读取当前请求的调用方；未认证时返回零值
func ActorFromGin(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}

// SetActor 供测试与内部调用注入调用方
func SetActor(c *gin.Context, actor entity.Actor) {
	c.Set(actorKey, actor)
}
