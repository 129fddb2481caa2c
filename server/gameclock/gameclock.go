// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package gameclock

import (
	"fmt"
	"os"
	"time"
)

// 比赛状态常量
const (
	StateBefore = "BEFORE"
	StateDuring = "DURING"
	StateAfter  = "AFTER"
)

// Clock 比赛时间窗口。start/end 为 nil 表示该边界不限制。
// 本身不持有任何状态，所有判断都基于调用方传入的 now，
// 同一次请求内必须复用同一个 now，避免判断途中跨越边界。
type Clock struct {
	Start          *time.Time
	End            *time.Time
	SubmitAfterEnd bool // 比赛结束后是否仍接受提交（得分按0计）
	CountAfterEnd  bool // 比赛结束后的解题是否仍计分
}

// FromEnv 从环境变量读取比赛时间配置
// GAME_START / GAME_END 使用 RFC3339 格式，留空表示不限制
func FromEnv() (Clock, error) {
	var c Clock
	if s := os.Getenv("GAME_START"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c, fmt.Errorf("invalid GAME_START: %w", err)
		}
		c.Start = &t
	}
	if s := os.Getenv("GAME_END"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c, fmt.Errorf("invalid GAME_END: %w", err)
		}
		c.End = &t
	}
	c.SubmitAfterEnd = os.Getenv("SUBMIT_AFTER_END") == "true"
	c.CountAfterEnd = os.Getenv("COUNT_AFTER_END") == "true"
	return c, nil
}

// State 返回 now 时刻的比赛状态
func (c Clock) State(now time.Time) string {
	if c.Start != nil && c.Start.After(now) {
		return StateBefore
	}
	if c.End != nil && c.End.Before(now) {
		return StateAfter
	}
	return StateDuring
}

// Open 比赛是否开放（题目可见等）
func (c Clock) Open(now time.Time) bool {
	switch c.State(now) {
	case StateDuring:
		return true
	case StateAfter:
		return c.CountAfterEnd
	}
	return false
}

// Submittable 当前是否接受flag提交
func (c Clock) Submittable(now time.Time) bool {
	switch c.State(now) {
	case StateDuring:
		return true
	case StateAfter:
		return c.SubmitAfterEnd
	}
	return false
}

// Over 比赛是否已结束
func (c Clock) Over(now time.Time) bool {
	return c.State(now) == StateAfter
}

// Expired ts 时刻的解题是否已不计分
func (c Clock) Expired(ts time.Time) bool {
	if c.CountAfterEnd {
		return false
	}
	return c.End != nil && ts.After(*c.End)
}
