// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package scoring

import (
	"math"
	"os"
	"strconv"
)

// 计分模式常量
const (
	ModePlain       = "plain"       // 固定分值
	ModeProgressive = "progressive" // 随解题人数衰减
)

// Config 计分配置
type Config struct {
	Mode            string
	FirstBloodBonus int // 一血固定加分，0为关闭
	FirstBloodMin   int // 基础分低于该值的题目不发一血奖励
}

// FromEnv 从环境变量读取计分配置
// SCORING = plain | progressive，FIRST_BLOOD / FIRST_BLOOD_MIN 为整数
func FromEnv() Config {
	cfg := Config{Mode: ModePlain}
	if m := os.Getenv("SCORING"); m == ModeProgressive {
		cfg.Mode = ModeProgressive
	}
	if v, err := strconv.Atoi(os.Getenv("FIRST_BLOOD")); err == nil && v > 0 {
		cfg.FirstBloodBonus = v
	}
	if v, err := strconv.Atoi(os.Getenv("FIRST_BLOOD_MIN")); err == nil && v > 0 {
		cfg.FirstBloodMin = v
	}
	return cfg
}

// ComputePoints 计算题目在给定解题人数下的分值。
// progressive 模式使用 logistic 衰减：midpoint 为衰减速度常数
// （衰减最陡处的解题人数），spread = midpoint/3。
// solves == 0 时恒返回基础分，首个解题者拿满分。
func ComputePoints(base, min, midpoint, solves int, mode string) int {
	if mode != ModeProgressive {
		return base
	}
	if solves <= 0 {
		return base
	}
	if midpoint <= 0 || base <= min {
		return base
	}
	spread := float64(midpoint) / 3.0
	f := func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp((x-float64(midpoint))/spread))
	}
	v := math.Ceil(float64(base-min)*f(float64(solves))/f(1) + float64(min))
	return int(v)
}

// BloodBonus 一血奖励分。只挂在一血那条解题记录上，不改变题目本身分值。
func (c Config) BloodBonus(base int) int {
	if c.FirstBloodBonus == 0 || base < c.FirstBloodMin {
		return 0
	}
	return c.FirstBloodBonus
}
