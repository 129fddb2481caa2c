// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package store

import (
	"context"
	"errors"
	"time"
)

// 存储层哨兵错误。复合唯一键冲突是预期内的业务信号而非故障，
// 由提交流程翻译成"已解出"/"flag已被使用"。
var (
	ErrNotFound        = errors.New("store: not found")
	ErrDuplicateAnswer = errors.New("store: answer already recorded for team")
	ErrDuplicateNonce  = errors.New("store: nonce already used for challenge")
)

// Challenge 题目。AnswerHash 为校验器的不透明存储形态，只写不读，
// 任何对外接口都不得回显。
type Challenge struct {
	ID           int64
	Name         string
	Points       int // 基础分
	MinPoints    int // progressive 模式衰减下限
	DecaySpeed   int // 衰减速度常数（midpoint）
	Validator    string
	AnswerHash   string
	Unlocked     bool
	Prerequisite string // JSON，空串表示无前置
}

// Team 队伍。Score 是反规范化缓存，可由解题记录重算。
type Team struct {
	ID        int64
	Name      string
	Score     int
	LastSolve *time.Time
}

// Answer 解题记录，(challenge_id, team_id) 复合主键，写入后不可变
type Answer struct {
	ChallengeID int64
	TeamID      int64
	SolvedAt    time.Time
	FirstBlood  bool
	AnswerHash  string // 提交内容的审计摘要，不存原文
	SubmitIP    string
}

// ScoreHistoryEntry 记分历史，每次分数变动追加一条
type ScoreHistoryEntry struct {
	TeamID int64
	When   time.Time
	Score  int
}

// Store 存储协作方。并发去重完全依赖提交时的唯一键约束，
// 不在进程内加锁串行化提交。
type Store interface {
	GetChallenge(ctx context.Context, id int64) (*Challenge, error)
	ListChallenges(ctx context.Context) ([]Challenge, error)
	CreateChallenge(ctx context.Context, ch *Challenge) error
	UpdateChallenge(ctx context.Context, ch *Challenge) error
	// SetAnswer 更新题目的校验器类型与存储形态的答案
	SetAnswer(ctx context.Context, id int64, kind, answerHash string) error

	GetTeam(ctx context.Context, id int64) (*Team, error)
	ListTeams(ctx context.Context) ([]Team, error)

	HasSolved(ctx context.Context, challengeID, teamID int64) (bool, error)
	CountSolves(ctx context.Context, challengeID int64) (int, error)
	// SolveCounts 一次性取全部题目的解题人数（排行榜、重算用）
	SolveCounts(ctx context.Context) (map[int64]int, error)
	ListTeamAnswers(ctx context.Context, teamID int64) ([]Answer, error)
	ListAnswers(ctx context.Context) ([]Answer, error)

	// RecordSolve 原子落账：插入解题记录（冲突返回 ErrDuplicateAnswer）、
	// 可选插入nonce使用记录（冲突返回 ErrDuplicateNonce）、累加队伍分数、
	// 追加记分历史。任何一步失败整体回滚，分数不变。
	RecordSolve(ctx context.Context, ans Answer, nonce *int64, points int) error

	// SetTeamScore 重算作业覆写缓存分数并追加历史
	SetTeamScore(ctx context.Context, teamID int64, score int, when time.Time) error
	ListScoreHistory(ctx context.Context, teamID int64) ([]ScoreHistoryEntry, error)
}
