// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"ctfscore/server/logs"
)

// UserInfo 用户信息（不含密码哈希）
type UserInfo struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	TeamID      *int64 `json:"teamId,omitempty"`
	TeamName    string `json:"teamName,omitempty"`
}

// HandleListUsers 用户列表
func HandleListUsers(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT u.id, u.username, u.display_name, u.role, u.team_id, COALESCE(t.name, '')
		FROM users u
		LEFT JOIN teams t ON t.id = u.team_id
		ORDER BY u.id`)
	if err != nil {
		log.Printf("list users error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	defer rows.Close()

	users := []UserInfo{}
	for rows.Next() {
		var u UserInfo
		var teamID sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &teamID, &u.TeamName); err != nil {
			continue
		}
		if teamID.Valid {
			u.TeamID = &teamID.Int64
		}
		users = append(users, u)
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// HandleCreateUser 创建用户
func HandleCreateUser(c *gin.Context, db *sql.DB) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		Password    string `json:"password" binding:"required"`
		DisplayName string `json:"displayName"`
		Role        string `json:"role"`
		TeamID      *int64 `json:"teamId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "用户名不能为空，密码至少6位"})
		return
	}
	role := req.Role
	if role != "admin" {
		role = "user"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	var id int64
	err = db.QueryRow(`
		INSERT INTO users (username, display_name, password_hash, role, team_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		username, req.DisplayName, string(hash), role, req.TeamID).Scan(&id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "USER_EXISTS", "message": "用户名已存在"})
		return
	}

	adminID, adminName := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &adminID, nil, nil, c.ClientIP(),
		adminName+" 创建用户 ["+username+"]", nil)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleSetUserTeam 设置用户所属队伍
func HandleSetUserTeam(c *gin.Context, db *sql.DB) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req struct {
		TeamID *int64 `json:"teamId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	res, err := db.Exec(`UPDATE users SET team_id = $1 WHERE id = $2`, req.TeamID, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "TEAM_NOT_FOUND", "message": "队伍不存在"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleResetPassword 重置用户密码
func HandleResetPassword(c *gin.Context, db *sql.DB) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "密码至少6位"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	res, err := db.Exec(`UPDATE users SET password_hash = $1 WHERE id = $2`, string(hash), id)
	if err != nil {
		log.Printf("reset password error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "USER_NOT_FOUND"})
		return
	}

	adminID, adminName := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelWarning, &adminID, nil, nil, c.ClientIP(),
		adminName+" 重置了用户密码", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
