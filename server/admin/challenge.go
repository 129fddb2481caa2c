// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package admin

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ctfscore/server/game"
	"ctfscore/server/logs"
	"ctfscore/server/metrics"
	"ctfscore/server/store"
	"ctfscore/server/validator"
)

// ChallengeRequest 题目创建/更新请求。Answer 只写不读，
// 任何响应都不回显明文或存储形态。
type ChallengeRequest struct {
	Name         string `json:"name" binding:"required"`
	Points       int    `json:"points"`
	MinPoints    int    `json:"minPoints"`
	DecaySpeed   int    `json:"decaySpeed"`
	Validator    string `json:"validator"`
	Answer       string `json:"answer"`
	Unlocked     bool   `json:"unlocked"`
	Prerequisite string `json:"prerequisite"`
}

// ChallengeAdminView 题目管理视图（不含答案数据）
type ChallengeAdminView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Points       int    `json:"points"`
	MinPoints    int    `json:"minPoints"`
	DecaySpeed   int    `json:"decaySpeed"`
	Validator    string `json:"validator"`
	HasAnswer    bool   `json:"hasAnswer"`
	Unlocked     bool   `json:"unlocked"`
	Prerequisite string `json:"prerequisite"`
}

func adminView(ch *store.Challenge) ChallengeAdminView {
	return ChallengeAdminView{
		ID:           ch.ID,
		Name:         ch.Name,
		Points:       ch.Points,
		MinPoints:    ch.MinPoints,
		DecaySpeed:   ch.DecaySpeed,
		Validator:    ch.Validator,
		HasAnswer:    ch.AnswerHash != "",
		Unlocked:     ch.Unlocked,
		Prerequisite: ch.Prerequisite,
	}
}

func adminActor(c *gin.Context) (int64, string) {
	return c.GetInt64("userID"), c.GetString("username")
}

// HandleListChallenges 题目列表（管理端）
func HandleListChallenges(c *gin.Context, e *game.Engine) {
	challenges, err := e.Store.ListChallenges(c.Request.Context())
	if err != nil {
		log.Printf("list challenges error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	views := []ChallengeAdminView{}
	for i := range challenges {
		views = append(views, adminView(&challenges[i]))
	}
	c.JSON(http.StatusOK, gin.H{"challenges": views, "validators": validator.Kinds()})
}

// HandleGetChallenge 题目详情（管理端）
func HandleGetChallenge(c *gin.Context, e *game.Engine) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	ch, err := e.Store.GetChallenge(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("get challenge error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, adminView(ch))
}

// HandleCreateChallenge 创建题目
func HandleCreateChallenge(c *gin.Context, db *sql.DB, e *game.Engine) {
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	kind := req.Validator
	if kind == "" {
		kind = validator.DefaultKind
	}
	if !validator.Known(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "UNKNOWN_VALIDATOR", "message": "校验器类型不存在"})
		return
	}
	if req.DecaySpeed <= 0 {
		req.DecaySpeed = 12
	}

	ch := &store.Challenge{
		Name:         req.Name,
		Points:       req.Points,
		MinPoints:    req.MinPoints,
		DecaySpeed:   req.DecaySpeed,
		Validator:    kind,
		Unlocked:     req.Unlocked,
		Prerequisite: req.Prerequisite,
	}
	ctx := c.Request.Context()
	if err := e.Store.CreateChallenge(ctx, ch); err != nil {
		log.Printf("create challenge error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if req.Answer != "" {
		if err := e.SetValidator(ctx, ch.ID, kind, req.Answer); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_ANSWER", "message": "答案不合法"})
			return
		}
	}

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, nil, &ch.ID, c.ClientIP(),
		username+" 创建题目 ["+ch.Name+"]", nil)
	c.JSON(http.StatusOK, gin.H{"id": ch.ID})
}

// HandleUpdateChallenge 更新题目基本信息（不含答案）
func HandleUpdateChallenge(c *gin.Context, db *sql.DB, e *game.Engine) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if req.DecaySpeed <= 0 {
		req.DecaySpeed = 12
	}
	ch := &store.Challenge{
		ID:           id,
		Name:         req.Name,
		Points:       req.Points,
		MinPoints:    req.MinPoints,
		DecaySpeed:   req.DecaySpeed,
		Unlocked:     req.Unlocked,
		Prerequisite: req.Prerequisite,
	}
	err = e.Store.UpdateChallenge(c.Request.Context(), ch)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("update challenge error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, nil, &id, c.ClientIP(),
		username+" 更新题目 ["+req.Name+"]", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ChangeAnswerRequest 更换答案请求
type ChangeAnswerRequest struct {
	Validator string `json:"validator" binding:"required"`
	Answer    string `json:"answer" binding:"required"`
}

// HandleChangeAnswer 更换题目的校验器与答案。明文只在本次请求内存在。
func HandleChangeAnswer(c *gin.Context, db *sql.DB, e *game.Engine) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req ChangeAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if err := e.SetValidator(c.Request.Context(), id, req.Validator, req.Answer); err != nil {
		if errors.Is(err, game.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_ANSWER", "message": "校验器或答案不合法"})
			return
		}
		log.Printf("change answer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelWarning, &userID, nil, &id, c.ClientIP(),
		username+" 更换了题目答案", nil)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TestAnswerRequest 答案干跑请求
type TestAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
	TeamID int64  `json:"teamId"`
}

// HandleTestAnswer 干跑校验答案：不落账、不消耗nonce
func HandleTestAnswer(c *gin.Context, e *game.Engine) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req TestAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	ok, err := e.TestAnswer(c.Request.Context(), id, req.TeamID, req.Answer)
	if errors.Is(err, game.ErrValidation) {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("test answer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok})
}

// RecordAnswerRequest 人工补记请求
type RecordAnswerRequest struct {
	TeamID int64 `json:"teamId" binding:"required"`
}

// HandleRecordAnswer 人工补记解题（跳过比赛窗口与答案校验）
func HandleRecordAnswer(c *gin.Context, db *sql.DB, e *game.Engine) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	userID, username := adminActor(c)
	res, err := e.RecordAnswer(c.Request.Context(), id, req.TeamID, username, c.ClientIP())
	switch {
	case errors.Is(err, game.ErrAlreadySolved):
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_SOLVED", "message": "该队伍已解出该题"})
		return
	case errors.Is(err, game.ErrValidation):
		c.JSON(http.StatusNotFound, gin.H{"error": "NOT_FOUND", "message": "题目或队伍不存在"})
		return
	case err != nil:
		log.Printf("record answer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelWarning, &userID, &req.TeamID, &id, c.ClientIP(),
		username+" 人工补记解题", gin.H{"points": res.Points})
	c.JSON(http.StatusOK, gin.H{"success": true, "points": res.Points, "firstBlood": res.FirstBlood})
}

// MintFlagRequest flag生成请求
type MintFlagRequest struct {
	// per_team 传队伍ID，nonce类传nonce序号
	N int64 `json:"n"`
}

// HandleMintFlag 生成flag（仅 per_team 与 nonce 类校验器支持）
func HandleMintFlag(c *gin.Context, db *sql.DB, e *game.Engine) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	var req MintFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}

	ch, err := e.Store.GetChallenge(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("get challenge error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	v, err := validator.New(ch.Validator, ch.AnswerHash)
	if err != nil {
		log.Printf("mint flag: validator error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	minter, ok := v.(validator.FlagMinter)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NOT_MINTABLE", "message": "该校验器不支持生成flag"})
		return
	}
	flag, err := minter.MakeFlag(req.N)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MINT_FAILED", "message": "flag生成失败"})
		return
	}

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeAdminOp, logs.LevelInfo, &userID, nil, &id, c.ClientIP(),
		username+" 生成flag", gin.H{"n": req.N})
	c.JSON(http.StatusOK, gin.H{"flag": flag})
}

// HandleRecalculate 触发分数重算
func HandleRecalculate(c *gin.Context, db *sql.DB, e *game.Engine) {
	changed, err := e.Recalculate(c.Request.Context())
	if err != nil {
		log.Printf("recalculate error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	metrics.RecalcTotal.Inc()
	metrics.RecalcTeamsChanged.Set(float64(changed))

	userID, username := adminActor(c)
	logs.WriteLog(db, logs.TypeScoreRecalc, logs.LevelInfo, &userID, nil, nil, c.ClientIP(),
		username+" 触发分数重算", gin.H{"teamsChanged": changed})
	c.JSON(http.StatusOK, gin.H{"success": true, "teamsChanged": changed})
}
