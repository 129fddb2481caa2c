// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"ctfscore/server/game"
	"ctfscore/server/metrics"
)

// SubmitFlagRequest 提交flag请求
type SubmitFlagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// SubmitFlagResponse 提交flag响应
type SubmitFlagResponse struct {
	Correct    bool   `json:"correct"`
	Message    string `json:"message"`
	Score      int    `json:"score,omitempty"`
	FirstBlood bool   `json:"firstBlood,omitempty"`
}

// teamOfUser 查询用户所属队伍
func teamOfUser(db *sql.DB, userID int64) (int64, bool) {
	var teamID sql.NullInt64
	err := db.QueryRow(`SELECT team_id FROM users WHERE id = $1`, userID).Scan(&teamID)
	if err != nil || !teamID.Valid {
		return 0, false
	}
	return teamID.Int64, true
}

// HandleSubmitFlag 提交flag
func HandleSubmitFlag(c *gin.Context, db *sql.DB, e *game.Engine) {
	challengeID, err := strconv.ParseInt(c.Param("challengeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	userID := c.GetInt64("userID")
	username := c.GetString("username")

	var req SubmitFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "请输入flag"})
		return
	}

	teamID, ok := teamOfUser(db, userID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NO_TEAM", "message": "您还未加入队伍"})
		return
	}

	res, err := e.Submit(c.Request.Context(), game.SubmitRequest{
		ChallengeID: challengeID,
		TeamID:      teamID,
		Actor:       username,
		Answer:      req.Flag,
		IP:          c.ClientIP(),
	})

	switch {
	case err == nil:
		metrics.SubmissionsTotal.WithLabelValues("correct").Inc()
		metrics.SolvesTotal.Inc()
		c.JSON(http.StatusOK, SubmitFlagResponse{
			Correct:    true,
			Message:    "恭喜，答案正确！",
			Score:      res.Points,
			FirstBlood: res.FirstBlood,
		})
	case errors.Is(err, game.ErrInvalidAnswer):
		metrics.SubmissionsTotal.WithLabelValues("wrong").Inc()
		// 答错返回200，前端据 correct 字段展示
		c.JSON(http.StatusOK, SubmitFlagResponse{Correct: false, Message: "flag错误"})
	case errors.Is(err, game.ErrAlreadySolved):
		metrics.SubmissionsTotal.WithLabelValues("already_solved").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_SOLVED", "message": "您的队伍已解出该题"})
	case errors.Is(err, game.ErrFlagAlreadyUsed):
		metrics.SubmissionsTotal.WithLabelValues("flag_used").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "FLAG_ALREADY_USED", "message": "该flag已被使用"})
	case errors.Is(err, game.ErrAccessDenied):
		metrics.SubmissionsTotal.WithLabelValues("denied").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "ACCESS_DENIED", "message": "比赛未开放或题目未解锁"})
	case errors.Is(err, game.ErrValidation):
		metrics.SubmissionsTotal.WithLabelValues("denied").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND", "message": "题目不存在"})
	default:
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		log.Printf("submit flag error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
	}
}

// ChallengeView 题目列表项（选手视角，分值实时推导）
type ChallengeView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Solves   int    `json:"solves"`
	Solved   bool   `json:"solved"`
	Unlocked bool   `json:"unlocked"`
}

// HandleListChallenges 题目列表。progressive 模式下分值随解题人数变化，
// 每次都按当前人数重新计算，不读缓存。
func HandleListChallenges(c *gin.Context, db *sql.DB, e *game.Engine) {
	ctx := c.Request.Context()
	userID := c.GetInt64("userID")
	teamID, _ := teamOfUser(db, userID)

	if !e.Clock.Open(e.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "GAME_NOT_OPEN", "message": "比赛未开放"})
		return
	}

	challenges, err := e.Store.ListChallenges(ctx)
	if err != nil {
		log.Printf("list challenges error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	counts, err := e.Store.SolveCounts(ctx)
	if err != nil {
		log.Printf("solve counts error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	views := []ChallengeView{}
	for i := range challenges {
		ch := &challenges[i]
		if !ch.Unlocked {
			continue
		}
		solved := false
		if teamID > 0 {
			solved, _ = e.Store.HasSolved(ctx, ch.ID, teamID)
		}
		views = append(views, ChallengeView{
			ID:       ch.ID,
			Name:     ch.Name,
			Points:   e.ChallengeValue(ch, counts[ch.ID]),
			Solves:   counts[ch.ID],
			Solved:   solved,
			Unlocked: true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"challenges": views})
}

// SolveView 解题记录（选手视角）
type SolveView struct {
	ChallengeID int64  `json:"challengeId"`
	Challenge   string `json:"challenge"`
	Points      int    `json:"points"`
	FirstBlood  bool   `json:"firstBlood"`
	SolvedAt    string `json:"solvedAt"`
}

// HandleGetTeamSolves 本队解题记录，分值为当前实时值
func HandleGetTeamSolves(c *gin.Context, db *sql.DB, e *game.Engine) {
	ctx := c.Request.Context()
	userID := c.GetInt64("userID")
	teamID, ok := teamOfUser(db, userID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NO_TEAM", "message": "您还未加入队伍"})
		return
	}

	answers, err := e.Store.ListTeamAnswers(ctx, teamID)
	if err != nil {
		log.Printf("list team answers error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	counts, err := e.Store.SolveCounts(ctx)
	if err != nil {
		log.Printf("solve counts error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	solves := []SolveView{}
	for _, a := range answers {
		ch, err := e.Store.GetChallenge(ctx, a.ChallengeID)
		if err != nil {
			continue
		}
		solves = append(solves, SolveView{
			ChallengeID: a.ChallengeID,
			Challenge:   ch.Name,
			Points:      e.CurrentPoints(ch, a, counts[a.ChallengeID]),
			FirstBlood:  a.FirstBlood,
			SolvedAt:    a.SolvedAt.Format("2006-01-02 15:04:05"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"solves": solves})
}

// ScoreboardRow 排行榜行
type ScoreboardRow struct {
	Rank      int    `json:"rank"`
	TeamID    int64  `json:"teamId"`
	TeamName  string `json:"teamName"`
	Score     int    `json:"score"`
	LastSolve string `json:"lastSolve,omitempty"`
}

// HandleGetScoreboard 排行榜。总分由解题记录实时推导而非缓存列，
// 同分按最后解题时间早者在前。
func HandleGetScoreboard(c *gin.Context, e *game.Engine) {
	ctx := c.Request.Context()

	teams, err := e.Store.ListTeams(ctx)
	if err != nil {
		log.Printf("list teams error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	challenges, err := e.Store.ListChallenges(ctx)
	if err != nil {
		log.Printf("list challenges error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	counts, err := e.Store.SolveCounts(ctx)
	if err != nil {
		log.Printf("solve counts error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	answers, err := e.Store.ListAnswers(ctx)
	if err != nil {
		log.Printf("list answers error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	byID := make(map[int64]int, len(challenges))
	for i := range challenges {
		byID[challenges[i].ID] = i
	}
	totals := make(map[int64]int)
	for _, a := range answers {
		idx, ok := byID[a.ChallengeID]
		if !ok {
			continue
		}
		totals[a.TeamID] += e.CurrentPoints(&challenges[idx], a, counts[a.ChallengeID])
	}

	rows := make([]ScoreboardRow, 0, len(teams))
	for _, t := range teams {
		row := ScoreboardRow{TeamID: t.ID, TeamName: t.Name, Score: totals[t.ID]}
		if t.LastSolve != nil {
			row.LastSolve = t.LastSolve.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, row)
	}
	lastSolve := func(i int) string { return rows[i].LastSolve }
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		// 从未解题的排最后
		if lastSolve(i) == "" || lastSolve(j) == "" {
			return lastSolve(j) == ""
		}
		return lastSolve(i) < lastSolve(j)
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	c.JSON(http.StatusOK, gin.H{"scoreboard": rows})
}

// HandleGetScoreTrend 队伍记分历史（折线图用）
func HandleGetScoreTrend(c *gin.Context, e *game.Engine) {
	teamID, err := strconv.ParseInt(c.Param("teamId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	history, err := e.Store.ListScoreHistory(c.Request.Context(), teamID)
	if err != nil {
		log.Printf("list score history error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	type point struct {
		Time  string `json:"time"`
		Score int    `json:"score"`
	}
	points := []point{}
	for _, h := range history {
		points = append(points, point{Time: h.When.Format("2006-01-02 15:04:05"), Score: h.Score})
	}
	c.JSON(http.StatusOK, gin.H{"teamId": teamID, "trend": points})
}

// HandleGameStatus 比赛状态（倒计时、提交窗口）
func HandleGameStatus(c *gin.Context, e *game.Engine) {
	now := e.Now()
	resp := gin.H{
		"state":       e.Clock.State(now),
		"submittable": e.Clock.Submittable(now),
		"now":         now.Format("2006-01-02 15:04:05"),
	}
	if e.Clock.Start != nil {
		resp["start"] = e.Clock.Start.Format("2006-01-02 15:04:05")
	}
	if e.Clock.End != nil {
		resp["end"] = e.Clock.End.Format("2006-01-02 15:04:05")
	}
	c.JSON(http.StatusOK, resp)
}
