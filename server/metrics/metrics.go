// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SubmissionsTotal flag提交计数，按判定结果分桶
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctfscore_submissions_total",
			Help: "Flag submissions by outcome",
		},
		[]string{"outcome"},
	)

	// SolvesTotal 成功解题计数
	SolvesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctfscore_solves_total",
			Help: "Accepted solves",
		},
	)

	// RecalcTotal 重算作业执行计数
	RecalcTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ctfscore_recalculations_total",
			Help: "Score recalculation runs",
		},
	)

	// RecalcTeamsChanged 最近一次重算修正的队伍数
	RecalcTeamsChanged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctfscore_recalculation_teams_changed",
			Help: "Teams whose cached score was corrected by the last recalculation",
		},
	)
)

// Register 注册所有指标，main 启动时调用一次
func Register() {
	prometheus.MustRegister(
		SubmissionsTotal,
		SolvesTotal,
		RecalcTotal,
		RecalcTeamsChanged,
	)
}
