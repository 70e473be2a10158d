package token

import "testing"

func TestNewRefresh(t *testing.T) {
	a, err := NewRefresh()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewRefresh()
	if a.Raw == b.Raw || len(a.Raw) != 64 {
		t.Fatalf("unexpected tokens %q / %q", a.Raw, b.Raw)
	}
	if a.Digest != Digest(a.Raw) {
		t.Fatal("digest must match the raw token")
	}
}

func TestDigest(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Digest("hello"); got != want {
		t.Fatalf("got %s", got)
	}
	if Digest("") != "" {
		t.Fatal("blank token must not hash")
	}
}
