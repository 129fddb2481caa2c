// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// nonceValidator 一次性nonce flag。
// flag = base32(nonce ‖ HMAC(secret, nonce)前authBits位)，
// 密码学校验通过只是必要条件，(题目, nonce) 的使用记录插入成功才算解题。
type nonceValidator struct {
	secret    string
	nonceBits int
	authBits  int
}

func newNonceValidator(stored string, nonceBits, authBits int) (*nonceValidator, error) {
	if nonceBits <= 0 || nonceBits%8 != 0 {
		return nil, errors.New("nonce bits must be non-0 and a multiple of 8")
	}
	if authBits <= 0 || authBits%8 != 0 {
		return nil, errors.New("authenticator bits must be non-0 and a multiple of 8")
	}
	// base32 按 40 位分组，总长不对齐会引入 padding
	if (nonceBits+authBits)%40 != 0 {
		return nil, errors.New("total bits must be a multiple of 40")
	}
	if nonceBits > 64 {
		return nil, errors.New("nonce bits must fit in 64")
	}
	return &nonceValidator{secret: stored, nonceBits: nonceBits, authBits: authBits}, nil
}

// decodeBase32 大小写不敏感解码，并把易混淆的 0/1 归一为 O/I
func decodeBase32(s string) ([]byte, error) {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "0", "O")
	s = strings.ReplaceAll(s, "1", "I")
	return base32.StdEncoding.DecodeString(s)
}

func (v *nonceValidator) authenticator(nonce []byte) []byte {
	m := hmac.New(sha256.New, []byte(v.secret))
	m.Write(nonce)
	return m.Sum(nil)[:v.authBits/8]
}

func (v *nonceValidator) Validate(answer string, teamID int64) Result {
	if v.secret == "" {
		return Result{}
	}
	raw, err := decodeBase32(answer)
	if err != nil {
		return Result{}
	}
	if len(raw) != (v.nonceBits+v.authBits)/8 {
		return Result{}
	}
	nb := v.nonceBits / 8
	nonce, auth := raw[:nb], raw[nb:]
	if !hmac.Equal(auth, v.authenticator(nonce)) {
		return Result{}
	}
	n := unpackNonce(nonce)
	return Result{Valid: true, Nonce: &n}
}

func (v *nonceValidator) ChangeAnswer(answer string) (string, error) {
	if answer == "" {
		return "", errors.New("nonce secret must not be empty")
	}
	v.secret = answer
	return v.secret, nil
}

// MakeFlag 为指定nonce生成完整flag（发卡、测试用）
func (v *nonceValidator) MakeFlag(n int64) (string, error) {
	if v.secret == "" {
		return "", errors.New("nonce secret not set")
	}
	nb := v.nonceBits / 8
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	for _, b := range buf[:8-nb] {
		if b != 0 {
			return "", fmt.Errorf("nonce %d does not fit in %d bits", n, v.nonceBits)
		}
	}
	nonce := buf[8-nb:]
	return base32.StdEncoding.EncodeToString(append(nonce, v.authenticator(nonce)...)), nil
}

// unpackNonce 大端字节序展开为整数（作为使用记录的键）
func unpackNonce(nonce []byte) int64 {
	var buf [8]byte
	copy(buf[8-len(nonce):], nonce)
	return int64(binary.BigEndian.Uint64(buf[:]))
}
