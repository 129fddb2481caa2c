// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ctfscore/server/admin"
	"ctfscore/server/game"
	"ctfscore/server/gameclock"
	"ctfscore/server/logs"
	"ctfscore/server/metrics"
	"ctfscore/server/scoring"
	"ctfscore/server/store"
	"ctfscore/server/submission"
)

func main() {
	// 本地开发从 .env 读取配置，生产环境直接用环境变量
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	st := store.NewPostgres(db)
	if err := st.InitSchema(context.Background()); err != nil {
		log.Fatalf("failed to init schema: %v", err)
	}

	if err := ensureAdmin(db); err != nil {
		log.Fatalf("failed to ensure admin user: %v", err)
	}

	clock, err := gameclock.FromEnv()
	if err != nil {
		log.Fatalf("invalid game clock config: %v", err)
	}
	sc := scoring.FromEnv()
	log.Printf("scoring mode: %s, first blood bonus: %d", sc.Mode, sc.FirstBloodBonus)

	metrics.Register()

	engine := game.NewEngine(st, clock, sc)
	// 每次提交尝试都落审计日志并实时广播
	engine.Audit = func(e game.AuditEntry) {
		level := logs.LevelInfo
		switch e.Outcome {
		case "correct":
			level = logs.LevelSuccess
		case "flag_used", "error":
			level = logs.LevelError
		case "denied", "already_solved", "invalid":
			level = logs.LevelWarning
		}
		logs.WriteLog(db, logs.TypeFlagSubmit, level, nil, &e.TeamID, &e.ChallengeID, e.IP,
			e.Actor+" 提交flag: "+e.Outcome, gin.H{"answer": e.Answer})
	}

	r := gin.Default()
	r.Use(requestIDMiddleware())

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/login", func(c *gin.Context) {
			handleLogin(c, db, []byte(jwtSecret))
		})

		// ========== 公开API（无需认证）==========
		api.GET("/game", func(c *gin.Context) {
			submission.HandleGameStatus(c, engine)
		})
		api.GET("/scoreboard", func(c *gin.Context) {
			submission.HandleGetScoreboard(c, engine)
		})
		api.GET("/scoreboard/:teamId/trend", func(c *gin.Context) {
			submission.HandleGetScoreTrend(c, engine)
		})

		// 需要登录的选手API
		userAPI := api.Group("")
		userAPI.Use(userAuthMiddleware([]byte(jwtSecret)))
		{
			userAPI.GET("/challenges", func(c *gin.Context) {
				submission.HandleListChallenges(c, db, engine)
			})
			userAPI.POST("/challenges/:challengeId/submit", func(c *gin.Context) {
				submission.HandleSubmitFlag(c, db, engine)
			})
			userAPI.GET("/solves", func(c *gin.Context) {
				submission.HandleGetTeamSolves(c, db, engine)
			})
		}

		// 管理员后台API
		adminAPI := api.Group("/admin")
		adminAPI.Use(authMiddleware([]byte(jwtSecret)))
		{
			adminAPI.GET("/overview", func(c *gin.Context) {
				admin.HandleAdminOverview(c, db, engine)
			})
			adminAPI.GET("/settings", func(c *gin.Context) {
				admin.HandleGetGameSettings(c, engine)
			})

			// ========== 题目管理 ==========
			adminAPI.GET("/challenges", func(c *gin.Context) {
				admin.HandleListChallenges(c, engine)
			})
			adminAPI.POST("/challenges", func(c *gin.Context) {
				admin.HandleCreateChallenge(c, db, engine)
			})
			adminAPI.GET("/challenges/:id", func(c *gin.Context) {
				admin.HandleGetChallenge(c, engine)
			})
			adminAPI.PUT("/challenges/:id", func(c *gin.Context) {
				admin.HandleUpdateChallenge(c, db, engine)
			})
			adminAPI.PUT("/challenges/:id/answer", func(c *gin.Context) {
				admin.HandleChangeAnswer(c, db, engine)
			})
			adminAPI.POST("/challenges/:id/test-answer", func(c *gin.Context) {
				admin.HandleTestAnswer(c, engine)
			})
			adminAPI.POST("/challenges/:id/record-answer", func(c *gin.Context) {
				admin.HandleRecordAnswer(c, db, engine)
			})
			adminAPI.POST("/challenges/:id/mint-flag", func(c *gin.Context) {
				admin.HandleMintFlag(c, db, engine)
			})

			// ========== 计分 ==========
			adminAPI.POST("/recalculate", func(c *gin.Context) {
				admin.HandleRecalculate(c, db, engine)
			})
			adminAPI.GET("/scoreboard/export", func(c *gin.Context) {
				admin.HandleExportScoreboard(c, engine)
			})

			// ========== 队伍管理 ==========
			adminAPI.GET("/teams", func(c *gin.Context) {
				admin.HandleListTeams(c, db)
			})
			adminAPI.POST("/teams", func(c *gin.Context) {
				admin.HandleCreateTeam(c, db)
			})
			adminAPI.DELETE("/teams/:id", func(c *gin.Context) {
				admin.HandleDeleteTeam(c, db)
			})
			adminAPI.GET("/teams/:id/solves", func(c *gin.Context) {
				admin.HandleGetTeamSolves(c, db)
			})

			// ========== 用户管理 ==========
			adminAPI.GET("/users", func(c *gin.Context) {
				admin.HandleListUsers(c, db)
			})
			adminAPI.POST("/users", func(c *gin.Context) {
				admin.HandleCreateUser(c, db)
			})
			adminAPI.PUT("/users/:id/team", func(c *gin.Context) {
				admin.HandleSetUserTeam(c, db)
			})
			adminAPI.POST("/users/:id/reset-password", func(c *gin.Context) {
				admin.HandleResetPassword(c, db)
			})

			// ========== 系统日志 ==========
			adminAPI.GET("/logs", func(c *gin.Context) {
				logs.HandleGetLogs(c, db)
			})
			adminAPI.GET("/logs/ws", func(c *gin.Context) {
				logs.HandleLogsWebSocket(c)
			})
		}
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
