// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import "fmt"

// 校验器类型常量（存储在题目的 validator 字段中）
const (
	KindStatic       = "static"
	KindStaticCI     = "static_ci"
	KindStaticArgon2 = "static_argon2"
	KindRegex        = "regex"
	KindRegexCI      = "regex_ci"
	KindPerTeam      = "per_team"
	KindNonce1664B32 = "nonce_16_64"
	KindNonce3288B32 = "nonce_32_88"
)

// DefaultKind 新题目的默认校验器
const DefaultKind = KindStatic

// Result 单次校验结果
// Nonce 仅在一次性nonce类flag密码学校验通过时填充，
// 调用方必须为 (题目, nonce) 写入使用记录，写入冲突视为flag已被使用。
type Result struct {
	Valid bool
	Nonce *int64
}

// Validator flag校验策略。Validate 对攻击者可控输入永不panic，
// 格式错误一律按"答案错误"处理；ChangeAnswer 把新答案转换为存储形态
// （哈希、正则或HMAC密钥），题目中只保留该不透明形态。
type Validator interface {
	Validate(answer string, teamID int64) Result
	ChangeAnswer(answer string) (string, error)
}

// FlagMinter 可以主动生成flag的校验器（per_team、nonce类）
type FlagMinter interface {
	MakeFlag(n int64) (string, error)
}

var kinds = map[string]func(stored string) (Validator, error){
	KindStatic:       func(s string) (Validator, error) { return &staticValidator{stored: s}, nil },
	KindStaticCI:     func(s string) (Validator, error) { return &caseStaticValidator{staticValidator{stored: s}}, nil },
	KindStaticArgon2: func(s string) (Validator, error) { return &argon2Validator{stored: s}, nil },
	KindRegex:        func(s string) (Validator, error) { return &regexValidator{pattern: s}, nil },
	KindRegexCI:      func(s string) (Validator, error) { return &regexValidator{pattern: s, ignoreCase: true}, nil },
	KindPerTeam:      func(s string) (Validator, error) { return &perTeamValidator{key: s}, nil },
	KindNonce1664B32: func(s string) (Validator, error) {
		return newNonceValidator(s, 16, 64)
	},
	KindNonce3288B32: func(s string) (Validator, error) {
		return newNonceValidator(s, 32, 88)
	},
}

// New 根据类型标识和已存储的答案数据构造校验器
func New(kind, stored string) (Validator, error) {
	ctor, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown validator kind %q", kind)
	}
	return ctor(stored)
}

// Known 类型标识是否有效
func Known(kind string) bool {
	_, ok := kinds[kind]
	return ok
}

// Kinds 返回所有类型标识（管理端下拉用）
func Kinds() []string {
	return []string{
		KindStatic, KindStaticCI, KindStaticArgon2,
		KindRegex, KindRegexCI,
		KindPerTeam,
		KindNonce1664B32, KindNonce3288B32,
	}
}
