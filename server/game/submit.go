// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"ctfscore/server/store"
	"ctfscore/server/validator"
)

// SubmitRequest 一次flag提交。Answer 在入口处做 TrimSpace 规范化，
// 之后所有校验器拿到的都是同一份文本。
type SubmitRequest struct {
	ChallengeID int64
	TeamID      int64
	Actor       string
	Answer      string
	IP          string
}

// SubmitResult 判定通过后的结果
type SubmitResult struct {
	Points     int // 实际入账分值（赛后提交为0）
	FirstBlood bool
}

// Submit 处理一次选手提交。整个流程只取一次当前时间，
// 比赛窗口判断与落账时间戳保持一致。
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	now := e.Now()
	answer := strings.TrimSpace(req.Answer)

	fail := func(outcome string, err error) (*SubmitResult, error) {
		e.audit(AuditEntry{
			Actor: req.Actor, TeamID: req.TeamID, ChallengeID: req.ChallengeID,
			Answer: answer, Outcome: outcome, IP: req.IP,
		})
		return nil, err
	}

	if req.TeamID <= 0 {
		return fail("denied", ErrAccessDenied)
	}
	if !e.Clock.Submittable(now) {
		return fail("denied", ErrAccessDenied)
	}

	ch, err := e.Store.GetChallenge(ctx, req.ChallengeID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("invalid", ErrValidation)
	}
	if err != nil {
		return fail("error", fmt.Errorf("load challenge: %w", err))
	}
	if !e.unlockedForTeam(ctx, ch, req.TeamID) {
		return fail("denied", ErrAccessDenied)
	}

	v, err := validator.New(ch.Validator, ch.AnswerHash)
	if err != nil {
		log.Printf("challenge %d: validator %q: %v", ch.ID, ch.Validator, err)
		return fail("error", fmt.Errorf("validator: %w", err))
	}
	res := v.Validate(answer, req.TeamID)
	if !res.Valid {
		return fail("wrong", ErrInvalidAnswer)
	}

	// 解题人数在落账前读取：本次提交是第 solves+1 个解
	solves, err := e.Store.CountSolves(ctx, ch.ID)
	if err != nil {
		return fail("error", fmt.Errorf("count solves: %w", err))
	}
	firstBlood := solves == 0

	points := 0
	if !e.Clock.Expired(now) {
		points = e.ChallengeValue(ch, solves+1)
		if firstBlood {
			points += e.Scoring.BloodBonus(ch.Points)
		}
	}

	ans := store.Answer{
		ChallengeID: ch.ID,
		TeamID:      req.TeamID,
		SolvedAt:    now,
		FirstBlood:  firstBlood,
		AnswerHash:  validator.Crypt(req.Actor + answer),
		SubmitIP:    req.IP,
	}
	err = e.Store.RecordSolve(ctx, ans, res.Nonce, points)
	switch {
	case errors.Is(err, store.ErrDuplicateAnswer):
		return fail("already_solved", ErrAlreadySolved)
	case errors.Is(err, store.ErrDuplicateNonce):
		return fail("flag_used", ErrFlagAlreadyUsed)
	case err != nil:
		return fail("error", fmt.Errorf("record solve: %w", err))
	}

	e.audit(AuditEntry{
		Actor: req.Actor, TeamID: req.TeamID, ChallengeID: req.ChallengeID,
		Answer: answer, Outcome: "correct", IP: req.IP,
	})
	return &SubmitResult{Points: points, FirstBlood: firstBlood}, nil
}

// RecordAnswer 管理员人工补记。跳过比赛窗口、锁定与答案校验，
// 只保留存储层去重（同队同题仍然只能记一次）。
func (e *Engine) RecordAnswer(ctx context.Context, challengeID, teamID int64, actor, ip string) (*SubmitResult, error) {
	now := e.Now()

	ch, err := e.Store.GetChallenge(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrValidation
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if _, err := e.Store.GetTeam(ctx, teamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrValidation
		}
		return nil, fmt.Errorf("load team: %w", err)
	}

	solves, err := e.Store.CountSolves(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("count solves: %w", err)
	}
	firstBlood := solves == 0

	points := 0
	if !e.Clock.Expired(now) {
		points = e.ChallengeValue(ch, solves+1)
		if firstBlood {
			points += e.Scoring.BloodBonus(ch.Points)
		}
	}

	ans := store.Answer{
		ChallengeID: ch.ID,
		TeamID:      teamID,
		SolvedAt:    now,
		FirstBlood:  firstBlood,
		AnswerHash:  validator.Crypt(actor + "/manual"),
		SubmitIP:    ip,
	}
	err = e.Store.RecordSolve(ctx, ans, nil, points)
	if errors.Is(err, store.ErrDuplicateAnswer) {
		return nil, ErrAlreadySolved
	}
	if err != nil {
		return nil, fmt.Errorf("record solve: %w", err)
	}

	e.audit(AuditEntry{
		Actor: actor, TeamID: teamID, ChallengeID: challengeID,
		Answer: "(manual)", Outcome: "correct", IP: ip,
	})
	return &SubmitResult{Points: points, FirstBlood: firstBlood}, nil
}

// TestAnswer 管理员干跑校验：只判定，不落账、不消耗nonce
func (e *Engine) TestAnswer(ctx context.Context, challengeID, teamID int64, answer string) (bool, error) {
	ch, err := e.Store.GetChallenge(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrValidation
	}
	if err != nil {
		return false, fmt.Errorf("load challenge: %w", err)
	}
	v, err := validator.New(ch.Validator, ch.AnswerHash)
	if err != nil {
		return false, fmt.Errorf("validator: %w", err)
	}
	return v.Validate(strings.TrimSpace(answer), teamID).Valid, nil
}

// SetValidator 更换题目的校验器并重设答案。明文答案只在本次调用内
// 存在，落库前转换成校验器的存储形态。
func (e *Engine) SetValidator(ctx context.Context, challengeID int64, kind, answer string) error {
	if !validator.Known(kind) {
		return ErrValidation
	}
	v, err := validator.New(kind, "")
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	stored, err := v.ChangeAnswer(strings.TrimSpace(answer))
	if err != nil {
		return ErrValidation
	}
	err = e.Store.SetAnswer(ctx, challengeID, kind, stored)
	if errors.Is(err, store.ErrNotFound) {
		return ErrValidation
	}
	return err
}
