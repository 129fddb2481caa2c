// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ctfscore/server/game"
	"ctfscore/server/gameclock"
	"ctfscore/server/scoring"
	"ctfscore/server/store"
)

func newScoreboardEngine(t *testing.T) (*game.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	e := game.NewEngine(mem, gameclock.Clock{}, scoring.Config{Mode: scoring.ModePlain})
	e.Now = func() time.Time {
		return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	}
	return e, mem
}

func solveAt(t *testing.T, mem *store.Memory, chID, teamID int64, points int, at time.Time) {
	t.Helper()
	err := mem.RecordSolve(context.Background(), store.Answer{
		ChallengeID: chID, TeamID: teamID, SolvedAt: at,
	}, nil, points)
	if err != nil {
		t.Fatal(err)
	}
}

func TestScoreboardOrdering(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e, mem := newScoreboardEngine(t)

	ch := &store.Challenge{Name: "web1", Points: 100, DecaySpeed: 12, Unlocked: true}
	if err := mem.CreateChallenge(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	slow := mem.AddTeam("slow")
	fast := mem.AddTeam("fast")
	mem.AddTeam("idle")

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	// 同分时先解出者排前
	solveAt(t, mem, ch.ID, fast.ID, 100, base)
	solveAt(t, mem, ch.ID, slow.ID, 100, base.Add(time.Hour))

	r := gin.New()
	r.GET("/scoreboard", func(c *gin.Context) {
		HandleGetScoreboard(c, e)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/scoreboard", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Scoreboard []ScoreboardRow `json:"scoreboard"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Scoreboard) != 3 {
		t.Fatalf("rows = %d, want 3", len(resp.Scoreboard))
	}
	want := []struct {
		name  string
		score int
	}{
		{"fast", 100},
		{"slow", 100},
		{"idle", 0},
	}
	for i, tc := range want {
		row := resp.Scoreboard[i]
		if row.TeamName != tc.name || row.Score != tc.score || row.Rank != i+1 {
			t.Errorf("row %d = %+v, want %s/%d", i, row, tc.name, tc.score)
		}
	}
}

func TestGameStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e, _ := newScoreboardEngine(t)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e.Clock = gameclock.Clock{End: &end}

	r := gin.New()
	r.GET("/game", func(c *gin.Context) {
		HandleGameStatus(c, e)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/game", nil))

	var resp struct {
		State       string `json:"state"`
		Submittable bool   `json:"submittable"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != gameclock.StateAfter || resp.Submittable {
		t.Errorf("resp = %+v, want AFTER / not submittable", resp)
	}
}
