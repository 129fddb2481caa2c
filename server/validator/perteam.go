// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
)

// perTeamValidator 队伍专属flag。存储的是HMAC密钥，
// 队伍T的合法flag为 hex(HMAC(key, T的十进制ID))，由系统按需生成，
// 各队flag互不相同，直接提交他队flag必然失败。
type perTeamValidator struct {
	key string
}

func (v *perTeamValidator) mac(teamID int64) string {
	m := hmac.New(sha1.New, []byte(v.key))
	m.Write([]byte(strconv.FormatInt(teamID, 10)))
	return hex.EncodeToString(m.Sum(nil))
}

func (v *perTeamValidator) Validate(answer string, teamID int64) Result {
	if v.key == "" {
		return Result{}
	}
	return Result{Valid: hmac.Equal([]byte(v.mac(teamID)), []byte(answer))}
}

func (v *perTeamValidator) ChangeAnswer(answer string) (string, error) {
	if answer == "" {
		return "", errors.New("per_team key must not be empty")
	}
	v.key = answer
	return v.key, nil
}

// MakeFlag 生成指定队伍的flag（管理端展示用）
func (v *perTeamValidator) MakeFlag(teamID int64) (string, error) {
	if v.key == "" {
		return "", errors.New("per_team key not set")
	}
	return v.mac(teamID), nil
}
