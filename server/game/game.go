// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package game

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ctfscore/server/gameclock"
	"ctfscore/server/scoring"
	"ctfscore/server/store"
)

// AuditEntry 一次提交尝试的审计记录，成功失败都要落一条
type AuditEntry struct {
	Actor       string // 操作者（选手用户名或管理员标识）
	TeamID      int64
	ChallengeID int64
	Answer      string // 提交原文（仅审计通道可见）
	Outcome     string // correct | wrong | already_solved | flag_used | denied | error
	IP          string
}

// AuditFunc 审计落地函数，由 main 注入（写 system_logs 并广播）
type AuditFunc func(e AuditEntry)

// Engine 提交与计分引擎。不持有HTTP概念，网关层负责参数解析与状态码映射。
type Engine struct {
	Store   store.Store
	Clock   gameclock.Clock
	Scoring scoring.Config
	Audit   AuditFunc
	Now     func() time.Time
}

func NewEngine(st store.Store, clk gameclock.Clock, sc scoring.Config) *Engine {
	return &Engine{
		Store:   st,
		Clock:   clk,
		Scoring: sc,
		Now:     time.Now,
	}
}

func (e *Engine) audit(entry AuditEntry) {
	if e.Audit != nil {
		e.Audit(entry)
	}
}

// prerequisite 题目前置条件，JSON形态存储在题目上
// {"type":"None"} 或 {"type":"solved","challenge":N}
type prerequisite struct {
	Type      string `json:"type"`
	Challenge int64  `json:"challenge,omitempty"`
}

// unlockedForTeam 题目是否对该队伍开放（unlocked 且前置满足）
func (e *Engine) unlockedForTeam(ctx context.Context, ch *store.Challenge, teamID int64) bool {
	if !ch.Unlocked {
		return false
	}
	if ch.Prerequisite == "" {
		return true
	}
	var prereq prerequisite
	if err := json.Unmarshal([]byte(ch.Prerequisite), &prereq); err != nil {
		log.Printf("challenge %d: unparsable prerequisite, locking: %v", ch.ID, err)
		return false
	}
	switch prereq.Type {
	case "", "None":
		return true
	case "solved":
		solved, err := e.Store.HasSolved(ctx, prereq.Challenge, teamID)
		if err != nil {
			log.Printf("challenge %d: prerequisite check failed: %v", ch.ID, err)
			return false
		}
		return solved
	default:
		log.Printf("challenge %d: unknown prerequisite type %q", ch.ID, prereq.Type)
		return false
	}
}

// CurrentPoints 解题记录的实时分值。progressive 模式下分值由当前解题
// 人数即时推导，不按队伍缓存；比赛结束后的记录计0分（记录本身保留，
// 支持赛后人工补记而不虚增积分）。
func (e *Engine) CurrentPoints(ch *store.Challenge, ans store.Answer, solves int) int {
	if e.Clock.Expired(ans.SolvedAt) {
		return 0
	}
	pts := scoring.ComputePoints(ch.Points, ch.MinPoints, ch.DecaySpeed, solves, e.Scoring.Mode)
	if ans.FirstBlood {
		pts += e.Scoring.BloodBonus(ch.Points)
	}
	return pts
}

// ChallengeValue 题目对尚未解出的队伍展示的当前分值
func (e *Engine) ChallengeValue(ch *store.Challenge, solves int) int {
	return scoring.ComputePoints(ch.Points, ch.MinPoints, ch.DecaySpeed, solves, e.Scoring.Mode)
}
