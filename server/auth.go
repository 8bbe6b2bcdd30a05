// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"database/sql"
	_ "embed"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"speedcad/server/logs"
)

//go:embed schema.sql
var schemaSQL string

// tokenTTL 会话有效期
const tokenTTL = 24 * time.Hour

// ensureSchema 建表（幂等）
func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

// ensureAdmin 确保管理员账户存在，密码以环境变量为准
func ensureAdmin(db *sql.DB, username, password string) error {
	if username == "" || password == "" {
		log.Printf("[ensureAdmin] 未配置 ADMIN_USERNAME/ADMIN_PASSWORD，跳过管理员初始化")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO admins (username, password_hash, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id`, username, string(hash)).Scan(&id)
	if err != nil {
		return err
	}
	log.Printf("[ensureAdmin] 管理员账户已就绪: %s (ID: %d)", username, id)
	return nil
}

// handleLogin 处理管理员登录
func handleLogin(c *gin.Context, db *sql.DB, secret []byte, audit *logs.Writer) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Username and password are required"})
		return
	}

	var (
		id           int64
		passwordHash string
	)
	err := db.QueryRowContext(c.Request.Context(),
		`SELECT id, password_hash FROM admins WHERE username = $1`, req.Username,
	).Scan(&id, &passwordHash)

	clientIP := c.ClientIP()

	if err == sql.ErrNoRows {
		audit.Write(logs.TypeLogin, logs.LevelError, req.Username, clientIP, "登录失败: 管理员 ["+req.Username+"] 不存在", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS", "message": "Invalid username or password"})
		return
	}
	if err != nil {
		log.Printf("[Auth] query admin error: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "STORE_UNAVAILABLE", "message": "Please try again"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		audit.Write(logs.TypeLogin, logs.LevelError, req.Username, clientIP, "登录失败: 管理员 ["+req.Username+"] 密码错误", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS", "message": "Invalid username or password"})
		return
	}

	admin := Admin{ID: id, Username: req.Username, Role: roleAdmin}
	token, err := generateJWT(req.Username, roleAdmin, secret)
	if err != nil {
		log.Printf("[Auth] generate token error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	audit.Write(logs.TypeLogin, logs.LevelSuccess, req.Username, clientIP, req.Username+" 登录管理后台", nil)
	c.JSON(http.StatusOK, loginResponse{Token: token, Admin: admin})
}

// generateJWT 生成JWT令牌。管理员 sub 为用户名，选手 sub 为邮箱
func generateJWT(subject, role string, secret []byte) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  now.Add(tokenTTL).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// participantTokenIssuer 选手报名后签发令牌
func participantTokenIssuer(secret []byte) func(email string) (string, error) {
	return func(email string) (string, error) {
		return generateJWT(email, roleParticipant, secret)
	}
}
