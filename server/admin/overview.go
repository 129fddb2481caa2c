// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"ctfscore/server/game"
)

// HandleAdminOverview 管理后台概览
func HandleAdminOverview(c *gin.Context, db *sql.DB, e *game.Engine) {
	var teams, users, challenges, solves, firstBloods int
	db.QueryRow(`SELECT COUNT(*) FROM teams`).Scan(&teams)
	db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&users)
	db.QueryRow(`SELECT COUNT(*) FROM challenges`).Scan(&challenges)
	db.QueryRow(`SELECT COUNT(*) FROM answers`).Scan(&solves)
	db.QueryRow(`SELECT COUNT(*) FROM answers WHERE first_blood`).Scan(&firstBloods)

	now := e.Now()
	c.JSON(http.StatusOK, gin.H{
		"teams":       teams,
		"users":       users,
		"challenges":  challenges,
		"solves":      solves,
		"firstBloods": firstBloods,
		"gameState":   e.Clock.State(now),
		"scoringMode": e.Scoring.Mode,
	})
}
