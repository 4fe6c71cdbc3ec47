package sandbox

import "testing"

func TestShlexQuotesLikeShellwords(t *testing.T) {
	got := Shlex([]string{"curl", "https://example.com/a b"})
	want := "curl 'https://example.com/a b'"
	if got != want {
		t.Fatalf("Shlex = %q, want %q", got, want)
	}
}
