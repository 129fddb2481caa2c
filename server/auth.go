// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ctfscore/server/logs"
)

// ensureAdmin 确保管理员账户存在。账号密码由环境变量控制，
// 每次启动都用环境变量的值覆盖，保证管理员凭据以部署配置为准。
func ensureAdmin(db *sql.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	displayName := os.Getenv("ADMIN_DISPLAY_NAME")

	if username == "" || password == "" {
		return nil
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var existingID int64
	err = db.QueryRow(`SELECT id FROM users WHERE username = $1`, username).Scan(&existingID)
	if err == sql.ErrNoRows {
		var newID int64
		err = db.QueryRow(`INSERT INTO users (username, display_name, role, password_hash)
			VALUES ($1, $2, 'admin', $3) RETURNING id`,
			username, displayName, string(hash)).Scan(&newID)
		if err != nil {
			return err
		}
		log.Printf("[ensureAdmin] Created admin: %s (ID: %d)", username, newID)
		return nil
	}
	if err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE users SET role = 'admin', display_name = $1, password_hash = $2 WHERE id = $3`,
		displayName, string(hash), existingID)
	if err != nil {
		return err
	}
	log.Printf("[ensureAdmin] Updated admin: %s (ID: %d)", username, existingID)
	return nil
}

// handleLogin 处理登录请求
func handleLogin(c *gin.Context, db *sql.DB, secret []byte) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var (
		id           int64
		username     string
		displayName  string
		role         string
		passwordHash string
		teamID       sql.NullInt64
	)
	err := db.QueryRow(
		`SELECT id, username, display_name, role, password_hash, team_id FROM users WHERE username = $1`,
		req.Username,
	).Scan(&id, &username, &displayName, &role, &passwordHash, &teamID)

	clientIP := c.ClientIP()

	if err == sql.ErrNoRows {
		// 用户不存在，记录失败日志
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, nil, nil, nil, clientIP,
			"登录失败: 用户 ["+req.Username+"] 不存在", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}
	if err != nil {
		log.Printf("query user error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		// 密码错误，记录失败日志
		logs.WriteLog(db, logs.TypeLogin, logs.LevelError, &id, nil, nil, clientIP,
			"登录失败: 用户 ["+displayName+"] 密码错误", nil)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS"})
		return
	}

	u := User{ID: id, Username: username, DisplayName: displayName, Role: role}
	if teamID.Valid {
		u.TeamID = &teamID.Int64
	}

	token, err := generateJWT(u, secret)
	if err != nil {
		log.Printf("generate token error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	// 记录登录日志
	logs.WriteLogSimple(db, logs.TypeLogin, logs.LevelSuccess, id, clientIP, displayName+" 登录系统")

	c.JSON(http.StatusOK, loginResponse{Token: token, User: u})
}

// generateJWT 生成JWT令牌
func generateJWT(u User, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":         u.ID,
		"username":    u.Username,
		"displayName": u.DisplayName,
		"role":        u.Role,
		"exp":         time.Now().Add(24 * time.Hour).Unix(),
		"iat":         time.Now().Unix(),
	}
	if u.TeamID != nil {
		claims["teamId"] = *u.TeamID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
