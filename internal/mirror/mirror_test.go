package mirror

import "testing"

func TestApplyCaseInsensitivePrefix(t *testing.T) {
	rules := []Rule{{Find: "HTTP://UPSTREAM.EXAMPLE/", Replace: "http://local.example/"}}
	got, rewrote := Apply("http://upstream.example/pkg/foo.cab", rules)
	if !rewrote {
		t.Fatal("expected rewrite")
	}
	want := "http://local.example/pkg/foo.cab"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestApplyNoMatch(t *testing.T) {
	rules := []Rule{{Find: "http://other/", Replace: "http://local/"}}
	got, rewrote := Apply("http://upstream/pkg/foo.cab", rules)
	if rewrote {
		t.Fatal("expected no rewrite")
	}
	if got != "http://upstream/pkg/foo.cab" {
		t.Fatalf("path mutated without rewrite: %q", got)
	}
}

func TestApplyFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Find: "http://x/", Replace: "http://first/"},
		{Find: "http://x/", Replace: "http://second/"},
	}
	got, _ := Apply("http://x/a", rules)
	if got != "http://first/a" {
		t.Fatalf("got %q, want first rule to win", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := "http://example/?a=b"
	enc := Encode(s)
	if enc == s {
		t.Fatal("expected encoding to change value containing '='")
	}
	if Decode(enc) != s {
		t.Fatalf("round trip mismatch: got %q want %q", Decode(enc), s)
	}
}
