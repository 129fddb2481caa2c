// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package gameclock

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestState(t *testing.T) {
	start := mustTime(t, "2026-03-01T09:00:00Z")
	end := mustTime(t, "2026-03-03T09:00:00Z")
	c := Clock{Start: &start, End: &end}

	cases := []struct {
		now  string
		want string
	}{
		{"2026-02-28T00:00:00Z", StateBefore},
		{"2026-03-01T09:00:00Z", StateDuring}, // 边界时刻算比赛中
		{"2026-03-02T12:00:00Z", StateDuring},
		{"2026-03-03T09:00:00Z", StateDuring},
		{"2026-03-04T00:00:00Z", StateAfter},
	}
	for _, tc := range cases {
		if got := c.State(mustTime(t, tc.now)); got != tc.want {
			t.Errorf("State(%s) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestStateUnbounded(t *testing.T) {
	var c Clock
	if got := c.State(time.Now()); got != StateDuring {
		t.Errorf("no bounds: State = %s, want DURING", got)
	}
}

func TestSubmittableAfterEnd(t *testing.T) {
	end := mustTime(t, "2026-03-03T09:00:00Z")
	after := mustTime(t, "2026-03-04T00:00:00Z")

	c := Clock{End: &end}
	if c.Submittable(after) {
		t.Error("submit after end should be rejected by default")
	}
	c.SubmitAfterEnd = true
	if !c.Submittable(after) {
		t.Error("SubmitAfterEnd should keep submissions open")
	}
}

func TestExpired(t *testing.T) {
	end := mustTime(t, "2026-03-03T09:00:00Z")
	after := mustTime(t, "2026-03-04T00:00:00Z")
	during := mustTime(t, "2026-03-02T00:00:00Z")

	c := Clock{End: &end}
	if c.Expired(during) {
		t.Error("solve during the game must count")
	}
	if !c.Expired(after) {
		t.Error("solve after end must not count by default")
	}
	c.CountAfterEnd = true
	if c.Expired(after) {
		t.Error("CountAfterEnd should keep late solves worth points")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GAME_START", "2026-03-01T09:00:00Z")
	t.Setenv("GAME_END", "2026-03-03T09:00:00Z")
	t.Setenv("SUBMIT_AFTER_END", "true")
	t.Setenv("COUNT_AFTER_END", "")

	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.Start == nil || c.End == nil {
		t.Fatal("expected both bounds set")
	}
	if !c.SubmitAfterEnd || c.CountAfterEnd {
		t.Errorf("flags = %v/%v, want true/false", c.SubmitAfterEnd, c.CountAfterEnd)
	}

	t.Setenv("GAME_START", "not-a-time")
	if _, err := FromEnv(); err == nil {
		t.Error("expected error for malformed GAME_START")
	}
}
