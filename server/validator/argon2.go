// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id 参数。和pbkdf2一样，参数写入存储串，调整后旧答案仍可校验。
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
)

// cryptArgon2 生成答案的argon2id摘要，格式 argon2id$<t>$<m>$<p>$<salt>$<digest>
func cryptArgon2(answer string) string {
	salt := make([]byte, cryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		// 熵源读不出来无法继续出题
		panic(err)
	}
	dk := argon2.IDKey([]byte(answer), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return "argon2id$" + strconv.Itoa(argonTime) + "$" + strconv.Itoa(argonMemory) + "$" +
		strconv.Itoa(argonThreads) + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(dk)
}

// verifyArgon2 用存储串中的参数重新计算摘要并恒定时间比较
func verifyArgon2(answer, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	t, err := strconv.Atoi(parts[1])
	if err != nil || t <= 0 {
		return false
	}
	m, err := strconv.Atoi(parts[2])
	if err != nil || m <= 0 {
		return false
	}
	p, err := strconv.Atoi(parts[3])
	if err != nil || p <= 0 || p > 255 {
		return false
	}
	salt, err := hex.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(answer), salt, uint32(t), uint32(m), uint8(p), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// argon2Validator 静态flag的argon2id变体，存储形态同样不可逆
type argon2Validator struct {
	stored string
}

func (v *argon2Validator) Validate(answer string, teamID int64) Result {
	if v.stored == "" {
		return Result{}
	}
	return Result{Valid: verifyArgon2(answer, v.stored)}
}

func (v *argon2Validator) ChangeAnswer(answer string) (string, error) {
	v.stored = cryptArgon2(answer)
	return v.stored, nil
}
