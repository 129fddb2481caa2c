// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ctfscore/server/gameclock"
	"ctfscore/server/scoring"
	"ctfscore/server/store"
	"ctfscore/server/validator"
)

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	e := NewEngine(mem, gameclock.Clock{}, scoring.Config{Mode: scoring.ModePlain})
	e.Now = func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	}
	return e, mem
}

func addChallenge(t *testing.T, e *Engine, points int, kind, answer string) *store.Challenge {
	t.Helper()
	ch := &store.Challenge{Name: "test", Points: points, DecaySpeed: 12, Unlocked: true}
	if err := e.Store.CreateChallenge(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	if err := e.SetValidator(context.Background(), ch.ID, kind, answer); err != nil {
		t.Fatal(err)
	}
	got, err := e.Store.GetChallenge(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func submit(e *Engine, teamID, chID int64, answer string) (*SubmitResult, error) {
	return e.Submit(context.Background(), SubmitRequest{
		ChallengeID: chID, TeamID: teamID, Actor: "player", Answer: answer, IP: "10.0.0.1",
	})
}

func TestSubmitCorrect(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	res, err := submit(e, team.ID, ch.ID, "flag{x}")
	if err != nil {
		t.Fatal(err)
	}
	if res.Points != 100 || !res.FirstBlood {
		t.Errorf("result = %+v, want 100 points first blood", res)
	}
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if got.Score != 100 {
		t.Errorf("team score = %d, want 100", got.Score)
	}
	if got.LastSolve == nil {
		t.Error("last solve not set")
	}
}

func TestSubmitTrimsWhitespace(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	if _, err := submit(e, team.ID, ch.ID, "  flag{x}\n"); err != nil {
		t.Fatalf("trimmed answer rejected: %v", err)
	}
}

func TestSubmitWrongAnswer(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	_, err := submit(e, team.ID, ch.ID, "flag{y}")
	if !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("err = %v, want ErrInvalidAnswer", err)
	}
	// 错误提交不产生任何记录，分数不变
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if got.Score != 0 {
		t.Errorf("team score = %d, want 0", got.Score)
	}
	solved, _ := mem.HasSolved(context.Background(), ch.ID, team.ID)
	if solved {
		t.Error("wrong answer must not record a solve")
	}
}

func TestSubmitAlreadySolved(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	if _, err := submit(e, team.ID, ch.ID, "flag{x}"); err != nil {
		t.Fatal(err)
	}
	_, err := submit(e, team.ID, ch.ID, "flag{x}")
	if !errors.Is(err, ErrAlreadySolved) {
		t.Fatalf("err = %v, want ErrAlreadySolved", err)
	}
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if got.Score != 100 {
		t.Errorf("team score = %d after duplicate, want 100", got.Score)
	}
}

func TestSubmitAppendsScoreHistory(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	if _, err := submit(e, team.ID, ch.ID, "flag{x}"); err != nil {
		t.Fatal(err)
	}
	hist, err := mem.ListScoreHistory(context.Background(), team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Fatalf("history entries = %d, want 1", len(hist))
	}
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if hist[0].Score != 100 || hist[0].Score != got.Score {
		t.Errorf("history score = %d, team score = %d, want both 100", hist[0].Score, got.Score)
	}

	// 重复提交整体回滚，不追加历史
	if _, err := submit(e, team.ID, ch.ID, "flag{x}"); !errors.Is(err, ErrAlreadySolved) {
		t.Fatalf("err = %v, want ErrAlreadySolved", err)
	}
	hist, _ = mem.ListScoreHistory(context.Background(), team.ID)
	if len(hist) != 1 {
		t.Errorf("history entries after duplicate = %d, want 1", len(hist))
	}
}

func TestSubmitNonceReuse(t *testing.T) {
	e, mem := newTestEngine(t)
	a := mem.AddTeam("alpha")
	b := mem.AddTeam("bravo")
	ch := addChallenge(t, e, 100, validator.KindNonce1664B32, "secret123")

	v, err := validator.New(validator.KindNonce1664B32, "secret123")
	if err != nil {
		t.Fatal(err)
	}
	flag, err := v.(validator.FlagMinter).MakeFlag(9)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := submit(e, a.ID, ch.ID, flag); err != nil {
		t.Fatal(err)
	}
	// 另一队复用同一张flag：密码学校验通过但使用记录冲突
	_, err = submit(e, b.ID, ch.ID, flag)
	if !errors.Is(err, ErrFlagAlreadyUsed) {
		t.Fatalf("err = %v, want ErrFlagAlreadyUsed", err)
	}
	got, _ := mem.GetTeam(context.Background(), b.ID)
	if got.Score != 0 {
		t.Errorf("team bravo score = %d, want 0", got.Score)
	}

	// 换一张新flag仍可正常解题
	flag2, _ := v.(validator.FlagMinter).MakeFlag(10)
	if _, err := submit(e, b.ID, ch.ID, flag2); err != nil {
		t.Fatalf("fresh flag rejected: %v", err)
	}
}

func TestSubmitClockGate(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	start := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	e.Clock = gameclock.Clock{Start: &start}
	_, err := submit(e, team.ID, ch.ID, "flag{x}")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("before start: err = %v, want ErrAccessDenied", err)
	}

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e.Clock = gameclock.Clock{End: &end}
	_, err = submit(e, team.ID, ch.ID, "flag{x}")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("after end: err = %v, want ErrAccessDenied", err)
	}
}

func TestSubmitAfterEndZeroPoints(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e.Clock = gameclock.Clock{End: &end, SubmitAfterEnd: true}

	res, err := submit(e, team.ID, ch.ID, "flag{x}")
	if err != nil {
		t.Fatal(err)
	}
	// 赛后提交：记录保留，分值为0
	if res.Points != 0 {
		t.Errorf("points = %d, want 0 after end", res.Points)
	}
	solved, _ := mem.HasSolved(context.Background(), ch.ID, team.ID)
	if !solved {
		t.Error("late solve must still be recorded")
	}
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if got.Score != 0 {
		t.Errorf("team score = %d, want 0", got.Score)
	}
}

func TestSubmitLockedAndPrerequisite(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	first := addChallenge(t, e, 100, validator.KindStatic, "flag{a}")
	second := addChallenge(t, e, 200, validator.KindStatic, "flag{b}")

	second.Unlocked = false
	if err := mem.UpdateChallenge(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if _, err := submit(e, team.ID, second.ID, "flag{b}"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("locked: err = %v, want ErrAccessDenied", err)
	}

	second.Unlocked = true
	second.Prerequisite = fmt.Sprintf(`{"type":"solved","challenge":%d}`, first.ID)
	if err := mem.UpdateChallenge(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if _, err := submit(e, team.ID, second.ID, "flag{b}"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("unmet prerequisite: err = %v, want ErrAccessDenied", err)
	}

	if _, err := submit(e, team.ID, first.ID, "flag{a}"); err != nil {
		t.Fatal(err)
	}
	if _, err := submit(e, team.ID, second.ID, "flag{b}"); err != nil {
		t.Fatalf("prerequisite met but rejected: %v", err)
	}
}

func TestSubmitValidationErrors(t *testing.T) {
	e, mem := newTestEngine(t)
	var entries []AuditEntry
	e.Audit = func(en AuditEntry) { entries = append(entries, en) }
	team := mem.AddTeam("alpha")

	if _, err := submit(e, team.ID, 999, "flag"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown challenge: err = %v, want ErrValidation", err)
	}
	if _, err := submit(e, 0, 1, "flag"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("no team: err = %v, want ErrAccessDenied", err)
	}
	// 审计出口与错误类别一一对应
	if len(entries) != 2 || entries[0].Outcome != "invalid" || entries[1].Outcome != "denied" {
		t.Errorf("audit outcomes = %+v, want [invalid denied]", entries)
	}
}

func TestSubmitFirstBloodBonus(t *testing.T) {
	e, mem := newTestEngine(t)
	e.Scoring = scoring.Config{Mode: scoring.ModePlain, FirstBloodBonus: 25}
	a := mem.AddTeam("alpha")
	b := mem.AddTeam("bravo")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	res, err := submit(e, a.ID, ch.ID, "flag{x}")
	if err != nil {
		t.Fatal(err)
	}
	if res.Points != 125 || !res.FirstBlood {
		t.Errorf("first solver: %+v, want 125 points", res)
	}
	res, err = submit(e, b.ID, ch.ID, "flag{x}")
	if err != nil {
		t.Fatal(err)
	}
	if res.Points != 100 || res.FirstBlood {
		t.Errorf("second solver: %+v, want 100 points no bonus", res)
	}
}

func TestSubmitAudit(t *testing.T) {
	e, mem := newTestEngine(t)
	var entries []AuditEntry
	e.Audit = func(en AuditEntry) { entries = append(entries, en) }
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	submit(e, team.ID, ch.ID, "flag{y}")
	submit(e, team.ID, ch.ID, "flag{x}")
	submit(e, team.ID, ch.ID, "flag{x}")

	if len(entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(entries))
	}
	for i, want := range []string{"wrong", "correct", "already_solved"} {
		if entries[i].Outcome != want {
			t.Errorf("entry %d outcome = %q, want %q", i, entries[i].Outcome, want)
		}
	}
}

func TestRecordAnswer(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	// 比赛未开始也允许人工补记
	start := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	e.Clock = gameclock.Clock{Start: &start}

	res, err := e.RecordAnswer(context.Background(), ch.ID, team.ID, "admin", "127.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Points != 100 {
		t.Errorf("points = %d, want 100", res.Points)
	}
	if _, err := e.RecordAnswer(context.Background(), ch.ID, team.ID, "admin", "127.0.0.1"); !errors.Is(err, ErrAlreadySolved) {
		t.Fatalf("duplicate manual credit: err = %v, want ErrAlreadySolved", err)
	}
	if _, err := e.RecordAnswer(context.Background(), ch.ID, 999, "admin", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown team: err = %v, want ErrValidation", err)
	}
}

func TestTestAnswerDryRun(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	ok, err := e.TestAnswer(context.Background(), ch.ID, team.ID, "flag{x}")
	if err != nil || !ok {
		t.Fatalf("TestAnswer = %v, %v", ok, err)
	}
	ok, _ = e.TestAnswer(context.Background(), ch.ID, team.ID, "flag{y}")
	if ok {
		t.Error("wrong answer reported valid")
	}
	// 干跑不落账
	solved, _ := mem.HasSolved(context.Background(), ch.ID, team.ID)
	if solved {
		t.Error("dry run must not record a solve")
	}
}

func TestSetValidator(t *testing.T) {
	e, mem := newTestEngine(t)
	mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	if err := e.SetValidator(context.Background(), ch.ID, "bogus", "x"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown kind: err = %v, want ErrValidation", err)
	}
	if err := e.SetValidator(context.Background(), ch.ID, validator.KindRegex, "[unclosed"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad pattern: err = %v, want ErrValidation", err)
	}
	if err := e.SetValidator(context.Background(), 999, validator.KindStatic, "x"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown challenge: err = %v, want ErrValidation", err)
	}

	// 密钥两端空白在存储前剔除
	if err := e.SetValidator(context.Background(), ch.ID, validator.KindPerTeam, "  secret123  "); err != nil {
		t.Fatal(err)
	}
	got, _ := mem.GetChallenge(context.Background(), ch.ID)
	if got.Validator != validator.KindPerTeam || got.AnswerHash != "secret123" {
		t.Errorf("challenge = %q/%q", got.Validator, got.AnswerHash)
	}
}

func TestProgressiveDecayOnSolves(t *testing.T) {
	e, mem := newTestEngine(t)
	e.Scoring = scoring.Config{Mode: scoring.ModeProgressive}
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	first := mem.AddTeam("t1")
	res, err := submit(e, first.ID, ch.ID, "flag{x}")
	if err != nil {
		t.Fatal(err)
	}
	if res.Points != 100 {
		t.Errorf("first solve = %d, want full 100", res.Points)
	}

	var last int = res.Points
	for i := 0; i < 15; i++ {
		team := mem.AddTeam("team")
		res, err := submit(e, team.ID, ch.ID, "flag{x}")
		if err != nil {
			t.Fatal(err)
		}
		if res.Points > last {
			t.Fatalf("solve %d worth %d, more than previous %d", i+2, res.Points, last)
		}
		last = res.Points
	}
	if last >= 100 {
		t.Errorf("16th solve still worth %d", last)
	}
}

func TestRecalculateIdempotent(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")
	if _, err := submit(e, team.ID, ch.ID, "flag{x}"); err != nil {
		t.Fatal(err)
	}

	// 缓存与记录一致时无事发生
	changed, err := e.Recalculate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Errorf("changed = %d, want 0", changed)
	}

	// 管理员调整题目分值后重算收敛到新值
	ch.Points = 200
	if err := mem.UpdateChallenge(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	changed, err = e.Recalculate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if got.Score != 200 {
		t.Errorf("score = %d, want 200", got.Score)
	}

	// 再跑一遍不再变化
	changed, _ = e.Recalculate(context.Background())
	if changed != 0 {
		t.Errorf("second run changed = %d, want 0", changed)
	}
}

func TestRecalculateDropsExpiredSolves(t *testing.T) {
	e, mem := newTestEngine(t)
	team := mem.AddTeam("alpha")
	ch := addChallenge(t, e, 100, validator.KindStatic, "flag{x}")

	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e.Clock = gameclock.Clock{End: &end, SubmitAfterEnd: true}
	if _, err := submit(e, team.ID, ch.ID, "flag{x}"); err != nil {
		t.Fatal(err)
	}

	changed, err := e.Recalculate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Errorf("changed = %d, want 0 (late solve already worth 0)", changed)
	}
	got, _ := mem.GetTeam(context.Background(), team.ID)
	if got.Score != 0 {
		t.Errorf("score = %d, want 0", got.Score)
	}
}
