// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"ctfscore/server/game"
)

// HandleExportScoreboard 导出排行榜Excel。分值按解题记录实时推导，
// 与排行榜接口使用同一套推导逻辑。
func HandleExportScoreboard(c *gin.Context, e *game.Engine) {
	ctx := c.Request.Context()

	teams, err := e.Store.ListTeams(ctx)
	if err != nil {
		log.Printf("export: list teams error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	challenges, err := e.Store.ListChallenges(ctx)
	if err != nil {
		log.Printf("export: list challenges error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	counts, err := e.Store.SolveCounts(ctx)
	if err != nil {
		log.Printf("export: solve counts error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	answers, err := e.Store.ListAnswers(ctx)
	if err != nil {
		log.Printf("export: list answers error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	byID := make(map[int64]int, len(challenges))
	for i := range challenges {
		byID[challenges[i].ID] = i
	}
	type rowData struct {
		name        string
		score       int
		solves      int
		firstBloods int
		lastSolve   *time.Time
	}
	data := make(map[int64]*rowData, len(teams))
	for _, t := range teams {
		data[t.ID] = &rowData{name: t.Name, lastSolve: t.LastSolve}
	}
	for _, a := range answers {
		row, ok := data[a.TeamID]
		if !ok {
			continue
		}
		idx, ok := byID[a.ChallengeID]
		if !ok {
			continue
		}
		row.score += e.CurrentPoints(&challenges[idx], a, counts[a.ChallengeID])
		row.solves++
		if a.FirstBlood {
			row.firstBloods++
		}
	}

	rows := make([]*rowData, 0, len(data))
	for _, r := range data {
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		if rows[i].lastSolve == nil || rows[j].lastSolve == nil {
			return rows[j].lastSolve == nil
		}
		return rows[i].lastSolve.Before(*rows[j].lastSolve)
	})

	f := excelize.NewFile()
	sheetName := "Sheet1"

	// 设置表头
	headers := []string{"排名", "队伍", "总分", "解题数", "一血数", "最后解题时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	// 设置表头样式
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FF6B00"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	f.SetCellStyle(sheetName, "A1", "F1", headerStyle)

	// 设置列宽
	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "B", 30)
	f.SetColWidth(sheetName, "C", "E", 10)
	f.SetColWidth(sheetName, "F", "F", 22)

	for i, r := range rows {
		lastSolve := ""
		if r.lastSolve != nil {
			lastSolve = r.lastSolve.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{i + 1, r.name, r.score, r.solves, r.firstBloods, lastSolve}
		for j, val := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	// 返回文件
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=scoreboard.xlsx")

	if err := f.Write(c.Writer); err != nil {
		log.Printf("write excel error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WRITE_ERROR"})
		return
	}
}
