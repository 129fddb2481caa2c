// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package game

import "errors"

// 提交流程的错误类别。对外文案必须保持笼统，
// 不得透露密钥、盐值或其他队伍的任何信息。
var (
	// ErrAccessDenied 比赛未开放 / 题目锁定 / 未加入队伍
	ErrAccessDenied = errors.New("access denied")
	// ErrValidation 请求本身不合法（题目不存在、参数缺失）
	ErrValidation = errors.New("validation error")
	// ErrInvalidAnswer 答案错误，可重试
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrAlreadySolved 该队伍已解出该题，终态
	ErrAlreadySolved = errors.New("already solved")
	// ErrFlagAlreadyUsed 一次性flag已被任意队伍消耗，终态
	ErrFlagAlreadyUsed = errors.New("flag already used")
)
