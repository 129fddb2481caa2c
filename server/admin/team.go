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
	"time"

	"github.com/gin-gonic/gin"

	"ctfscore/server/logs"
)

// TeamInfo 队伍信息
type TeamInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	LastSolve string `json:"lastSolve,omitempty"`
	Members   int    `json:"members"`
}

// HandleListTeams 队伍列表（管理端，含成员数）
func HandleListTeams(c *gin.Context, db *sql.DB) {
	rows, err := db.Query(`
		SELECT t.id, t.name, t.score, t.last_solve,
		       (SELECT COUNT(*) FROM users u WHERE u.team_id = t.id)
		FROM teams t
		ORDER BY t.id`)
	if err != nil {
		log.Printf("list teams error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	defer rows.Close()

	teams := []TeamInfo{}
	for rows.Next() {
		var t TeamInfo
		var lastSolve sql.NullTime
		if err := rows.Scan(&t.ID, &t.Name, &t.Score, &lastSolve, &t.Members); err != nil {
			continue
		}
		if lastSolve.Valid {
			t.LastSolve = lastSolve.Time.Format("2006-01-02 15:04:05")
		}
		teams = append(teams, t)
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

// HandleCreateTeam 创建队伍
func HandleCreateTeam(c *gin.Context, db *sql.DB) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "队伍名不能为空"})
		return
	}

	var id int64
	err := db.QueryRow(`INSERT INTO teams (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		// 唯一键冲突当作重名处理
		c.JSON(http.StatusBadRequest, gin.H{"error": "TEAM_EXISTS", "message": "队伍名已存在"})
		return
	}

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, &id, nil, c.ClientIP(),
		username+" 创建队伍 ["+name+"]", nil)
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// HandleDeleteTeam 删除队伍（须无解题记录）
func HandleDeleteTeam(c *gin.Context, db *sql.DB) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	var solves int
	db.QueryRow(`SELECT COUNT(*) FROM answers WHERE team_id = $1`, id).Scan(&solves)
	if solves > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "TEAM_HAS_SOLVES", "message": "该队伍已有解题记录，不能删除"})
		return
	}

	db.Exec(`UPDATE users SET team_id = NULL WHERE team_id = $1`, id)
	db.Exec(`DELETE FROM score_history WHERE team_id = $1`, id)
	res, err := db.Exec(`DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		log.Printf("delete team error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND"})
		return
	}

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelWarning, &userID, &id, nil, c.ClientIP(),
		username+" 删除队伍", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleGetTeamSolves 某队解题记录（管理端）
func HandleGetTeamSolves(c *gin.Context, db *sql.DB) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	rows, err := db.Query(`
		SELECT a.challenge_id, ch.name, a.solved_at, a.first_blood, a.submit_ip
		FROM answers a
		JOIN challenges ch ON ch.id = a.challenge_id
		WHERE a.team_id = $1
		ORDER BY a.solved_at`, id)
	if err != nil {
		log.Printf("team solves error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	defer rows.Close()

	type solve struct {
		ChallengeID int64  `json:"challengeId"`
		Challenge   string `json:"challenge"`
		SolvedAt    string `json:"solvedAt"`
		FirstBlood  bool   `json:"firstBlood"`
		SubmitIP    string `json:"submitIp"`
	}
	solves := []solve{}
	for rows.Next() {
		var s solve
		var at time.Time
		if err := rows.Scan(&s.ChallengeID, &s.Challenge, &at, &s.FirstBlood, &s.SubmitIP); err != nil {
			continue
		}
		s.SolvedAt = at.Format("2006-01-02 15:04:05")
		solves = append(solves, s)
	}
	c.JSON(http.StatusOK, gin.H{"solves": solves})
}
