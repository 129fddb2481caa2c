// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2 参数。迭代次数写入存储串，修改这里不影响旧答案的校验。
const (
	cryptIterations = 64000
	cryptSaltLen    = 16
	cryptKeyLen     = 32
)

// Crypt 生成答案的加盐单向摘要，格式 pbkdf2$<iter>$<salt>$<digest>
func Crypt(answer string) string {
	salt := make([]byte, cryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		// 熵源读不出来无法继续出题
		panic(err)
	}
	dk := pbkdf2.Key([]byte(answer), salt, cryptIterations, cryptKeyLen, sha256.New)
	return "pbkdf2$" + strconv.Itoa(cryptIterations) + "$" +
		hex.EncodeToString(salt) + "$" + hex.EncodeToString(dk)
}

// verifyCrypt 用存储串中的参数重新计算摘要并恒定时间比较
func verifyCrypt(answer, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2" {
		return false
	}
	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[3])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(answer), salt, iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// staticValidator 静态flag，全队伍共享，只存加盐摘要
type staticValidator struct {
	stored string
}

func (v *staticValidator) Validate(answer string, teamID int64) Result {
	if v.stored == "" {
		return Result{}
	}
	return Result{Valid: verifyCrypt(answer, v.stored)}
}

func (v *staticValidator) ChangeAnswer(answer string) (string, error) {
	v.stored = Crypt(answer)
	return v.stored, nil
}

// caseStaticValidator 大小写不敏感的静态flag，校验和存储前都先转小写
type caseStaticValidator struct {
	staticValidator
}

func (v *caseStaticValidator) Validate(answer string, teamID int64) Result {
	return v.staticValidator.Validate(strings.ToLower(answer), teamID)
}

func (v *caseStaticValidator) ChangeAnswer(answer string) (string, error) {
	return v.staticValidator.ChangeAnswer(strings.ToLower(answer))
}
