// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import "regexp"

// regexValidator 正则flag，要求整串匹配而非子串命中。
// 正则匹配天然不是恒定时间的，对计时敏感的题目应改用 static。
type regexValidator struct {
	pattern    string
	ignoreCase bool
}

func (v *regexValidator) compile() (*regexp.Regexp, error) {
	p := v.pattern
	if v.ignoreCase {
		p = "(?i)" + p
	}
	// \A ... \z 锚定整串
	return regexp.Compile(`\A(?:` + p + `)\z`)
}

func (v *regexValidator) Validate(answer string, teamID int64) Result {
	if v.pattern == "" {
		return Result{}
	}
	re, err := v.compile()
	if err != nil {
		// 存储的正则损坏按答案错误处理，不向选手暴露
		return Result{}
	}
	return Result{Valid: re.MatchString(answer)}
}

func (v *regexValidator) ChangeAnswer(answer string) (string, error) {
	v.pattern = answer
	if _, err := v.compile(); err != nil {
		return "", err
	}
	return v.pattern, nil
}
