// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// parseToken 优先从 Authorization 头获取 token，没有则从查询参数获取（用于 WebSocket 和文件下载）
func parseToken(c *gin.Context, secret []byte) (jwt.MapClaims, string) {
	tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		return nil, "UNAUTHORIZED"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, "INVALID_TOKEN"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "INVALID_CLAIMS"
	}
	return claims, ""
}

// roleMiddleware 要求指定角色的 JWT
func roleMiddleware(secret []byte, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, code := parseToken(c, secret)
		if code != "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": code, "message": "Please sign in again"})
			c.Abort()
			return
		}

		if got, _ := claims["role"].(string); got != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN", "message": "You do not have access to this resource"})
			c.Abort()
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CLAIMS"})
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("role", role)
		if role == roleAdmin {
			c.Set("username", sub)
		} else {
			c.Set("email", sub)
		}
		c.Next()
	}
}

// authMiddleware JWT认证中间件（管理员）
func authMiddleware(secret []byte) gin.HandlerFunc {
	return roleMiddleware(secret, roleAdmin)
}

// participantAuthMiddleware JWT认证中间件（已报名选手）
func participantAuthMiddleware(secret []byte) gin.HandlerFunc {
	return roleMiddleware(secret, roleParticipant)
}
