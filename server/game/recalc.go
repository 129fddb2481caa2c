// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package game

import (
	"context"
	"fmt"

	"ctfscore/server/store"
)

// Recalculate 按当前解题记录重算所有队伍的缓存分数。
// 导出值完全由 (题目参数, 解题人数, 首杀标记) 决定，重复执行结果不变；
// 只覆写发生变化的队伍，返回被修正的队伍数。
func (e *Engine) Recalculate(ctx context.Context) (int, error) {
	now := e.Now()

	challenges, err := e.Store.ListChallenges(ctx)
	if err != nil {
		return 0, fmt.Errorf("list challenges: %w", err)
	}
	byID := make(map[int64]*store.Challenge, len(challenges))
	for i := range challenges {
		byID[challenges[i].ID] = &challenges[i]
	}

	counts, err := e.Store.SolveCounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("solve counts: %w", err)
	}

	answers, err := e.Store.ListAnswers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list answers: %w", err)
	}
	totals := make(map[int64]int)
	for _, a := range answers {
		ch, ok := byID[a.ChallengeID]
		if !ok {
			continue
		}
		totals[a.TeamID] += e.CurrentPoints(ch, a, counts[a.ChallengeID])
	}

	teams, err := e.Store.ListTeams(ctx)
	if err != nil {
		return 0, fmt.Errorf("list teams: %w", err)
	}
	changed := 0
	for _, t := range teams {
		want := totals[t.ID]
		if want == t.Score {
			continue
		}
		if err := e.Store.SetTeamScore(ctx, t.ID, want, now); err != nil {
			return changed, fmt.Errorf("team %d: %w", t.ID, err)
		}
		changed++
	}
	return changed, nil
}
