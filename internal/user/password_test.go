package user

import "testing"

func TestPasswordHashAndVerify(t *testing.T) {
	salt, err := GenerateSaltHex()
	if err != nil {
		t.Fatalf("GenerateSaltHex: %v", err)
	}
	hash, err := HashPassword("p@ssw0rd", salt)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyPassword("p@ssw0rd", salt, hash) {
		t.Fatalf("expected verify ok")
	}
	if VerifyPassword("wrong", salt, hash) {
		t.Fatalf("expected verify fail")
	}
}

func TestPastJobsRoundTrip(t *testing.T) {
	u := &User{Role: RoleDriver}
	u.AppendPastJob("j-1")
	u.AppendPastJob("j-2")
	u.AppendPastJob("j-1") // 去重
	got := u.PastJobsSlice()
	if len(got) != 2 || got[0] != "j-1" || got[1] != "j-2" {
		t.Fatalf("unexpected past jobs: %#v", got)
	}
}
