// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctfscore/server/game"
)

// HandleGetGameSettings 比赛配置视图。配置来自环境变量，
// 修改需重启进程，这里只读展示。
func HandleGetGameSettings(c *gin.Context, e *game.Engine) {
	clock := gin.H{
		"submitAfterEnd": e.Clock.SubmitAfterEnd,
		"countAfterEnd":  e.Clock.CountAfterEnd,
	}
	if e.Clock.Start != nil {
		clock["start"] = e.Clock.Start.Format("2006-01-02 15:04:05")
	}
	if e.Clock.End != nil {
		clock["end"] = e.Clock.End.Format("2006-01-02 15:04:05")
	}
	c.JSON(http.StatusOK, gin.H{
		"clock": clock,
		"scoring": gin.H{
			"mode":            e.Scoring.Mode,
			"firstBloodBonus": e.Scoring.FirstBloodBonus,
			"firstBloodMin":   e.Scoring.FirstBloodMin,
		},
	})
}
