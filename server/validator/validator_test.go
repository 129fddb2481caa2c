// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package validator

import (
	"strings"
	"testing"
)

func TestStatic(t *testing.T) {
	v, err := New(KindStatic, "")
	if err != nil {
		t.Fatal(err)
	}
	// 答案未设置时一律拒绝
	if v.Validate("anything", 1).Valid {
		t.Error("empty stored answer must not validate")
	}

	stored, err := v.ChangeAnswer("fooanswer")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stored, "pbkdf2$") {
		t.Errorf("stored form %q lacks pbkdf2 prefix", stored)
	}

	v2, _ := New(KindStatic, stored)
	if !v2.Validate("fooanswer", 1).Valid {
		t.Error("correct answer rejected")
	}
	if v2.Validate("wronganswer", 1).Valid {
		t.Error("wrong answer accepted")
	}
	if v2.Validate("FOOANSWER", 1).Valid {
		t.Error("static must be case sensitive")
	}
}

func TestCryptSalted(t *testing.T) {
	a, b := Crypt("fooanswer"), Crypt("fooanswer")
	// 同一答案两次摘要盐值不同，且都可校验通过
	if a == b {
		t.Error("two digests of the same answer must differ")
	}
	if !verifyCrypt("fooanswer", a) || !verifyCrypt("fooanswer", b) {
		t.Error("fresh digest does not verify")
	}
}

func TestStaticCaseInsensitive(t *testing.T) {
	v, _ := New(KindStaticCI, "")
	stored, err := v.ChangeAnswer("FooAnswer")
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := New(KindStaticCI, stored)
	for _, ans := range []string{"fooanswer", "FOOANSWER", "FooAnswer"} {
		if !v2.Validate(ans, 1).Valid {
			t.Errorf("%q rejected", ans)
		}
	}
	if v2.Validate("fooanswer1", 1).Valid {
		t.Error("wrong answer accepted")
	}
}

func TestStaticArgon2(t *testing.T) {
	v, _ := New(KindStaticArgon2, "")
	if v.Validate("anything", 1).Valid {
		t.Error("empty stored answer must not validate")
	}
	stored, err := v.ChangeAnswer("fooanswer")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stored, "argon2id$") {
		t.Errorf("stored form %q lacks argon2id prefix", stored)
	}

	v2, _ := New(KindStaticArgon2, stored)
	if !v2.Validate("fooanswer", 1).Valid {
		t.Error("correct answer rejected")
	}
	if v2.Validate("wronganswer", 1).Valid {
		t.Error("wrong answer accepted")
	}
	// 存储串被篡改时按答案错误处理，不panic
	broken, _ := New(KindStaticArgon2, "argon2id$1$65536$4$zz$zz")
	if broken.Validate("fooanswer", 1).Valid {
		t.Error("malformed stored form accepted")
	}
}

func TestRegex(t *testing.T) {
	v, _ := New(KindRegex, "[abc]+")
	cases := []struct {
		answer string
		want   bool
	}{
		{"abc", true},
		{"aabbcc", true},
		{"abcd", false}, // 必须整串匹配
		{"xabc", false},
		{"ABC", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := v.Validate(tc.answer, 1).Valid; got != tc.want {
			t.Errorf("Validate(%q) = %v, want %v", tc.answer, got, tc.want)
		}
	}

	ci, _ := New(KindRegexCI, "[abc]+")
	if !ci.Validate("ABC", 1).Valid {
		t.Error("regex_ci should accept ABC")
	}
}

func TestRegexBrokenPattern(t *testing.T) {
	v, _ := New(KindRegex, "[unclosed")
	if v.Validate("anything", 1).Valid {
		t.Error("broken pattern must reject, not panic")
	}
	fresh, _ := New(KindRegex, "")
	if _, err := fresh.ChangeAnswer("[unclosed"); err == nil {
		t.Error("ChangeAnswer must refuse a non-compiling pattern")
	}
}

func TestPerTeam(t *testing.T) {
	v, _ := New(KindPerTeam, "secret123")
	m := v.(FlagMinter)

	flag1, err := m.MakeFlag(1)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Validate(flag1, 1).Valid {
		t.Error("team 1 flag rejected for team 1")
	}
	// 他队flag直接提交必然失败
	if v.Validate(flag1, 2).Valid {
		t.Error("team 1 flag accepted for team 2")
	}
	flag2, _ := m.MakeFlag(2)
	if flag1 == flag2 {
		t.Error("per-team flags must differ")
	}

	empty, _ := New(KindPerTeam, "")
	if empty.Validate(flag1, 1).Valid {
		t.Error("empty key must not validate")
	}
}

func TestNonce(t *testing.T) {
	v, err := New(KindNonce1664B32, "secret123")
	if err != nil {
		t.Fatal(err)
	}
	m := v.(FlagMinter)

	flag, err := m.MakeFlag(5)
	if err != nil {
		t.Fatal(err)
	}
	res := v.Validate(flag, 1)
	if !res.Valid {
		t.Fatal("freshly minted flag rejected")
	}
	if res.Nonce == nil || *res.Nonce != 5 {
		t.Fatalf("nonce = %v, want 5", res.Nonce)
	}

	// 大小写不敏感，0/1 归一为 O/I
	res = v.Validate(strings.ToLower(flag), 1)
	if !res.Valid || *res.Nonce != 5 {
		t.Error("lowercase form rejected")
	}

	if v.Validate("notbase32!!", 1).Valid {
		t.Error("undecodable input accepted")
	}
	if v.Validate("MFRGG===", 1).Valid {
		t.Error("wrong-length input accepted")
	}

	other, _ := New(KindNonce1664B32, "othersecret")
	if other.Validate(flag, 1).Valid {
		t.Error("flag accepted under a different secret")
	}
}

func TestNonceWideFormat(t *testing.T) {
	v, _ := New(KindNonce3288B32, "secret123")
	m := v.(FlagMinter)
	flag, err := m.MakeFlag(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	res := v.Validate(flag, 7)
	if !res.Valid || *res.Nonce != 1<<20 {
		t.Fatalf("wide format round trip failed: %+v", res)
	}
}

func TestNonceOverflow(t *testing.T) {
	v, _ := New(KindNonce1664B32, "secret123")
	m := v.(FlagMinter)
	if _, err := m.MakeFlag(1 << 20); err == nil {
		t.Error("nonce wider than 16 bits must be refused")
	}
}

func TestNonceConstruction(t *testing.T) {
	// 位宽校验：非8倍数、总长非40倍数、超过64位
	for _, tc := range [][2]int{{12, 68}, {16, 60}, {16, 32}, {72, 88}} {
		if _, err := newNonceValidator("s", tc[0], tc[1]); err == nil {
			t.Errorf("newNonceValidator(%d, %d) should fail", tc[0], tc[1])
		}
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New("bogus", ""); err == nil {
		t.Error("unknown kind must error")
	}
	if Known("bogus") {
		t.Error("Known(bogus) = true")
	}
	if !Known(DefaultKind) {
		t.Error("default kind must be known")
	}
	if len(Kinds()) != 8 {
		t.Errorf("Kinds() = %v", Kinds())
	}
}
