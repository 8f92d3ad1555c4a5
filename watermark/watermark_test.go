package watermark

import "testing"

func TestEmbedDetectRoundTrip(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog near the river bank today"
	embedded := Embed(text, "acct-1")

	account, ok := Detect(embedded, []string{"acct-other", "acct-1", "acct-another"})
	if !ok {
		t.Fatal("expected detection to succeed on text embedded for acct-1")
	}
	if account != "acct-1" {
		t.Fatalf("expected acct-1 to be identified, got %s", account)
	}
}

func TestDetectFailsWithoutMarkers(t *testing.T) {
	if _, ok := Detect("plain text with no markers at all", []string{"acct-1"}); ok {
		t.Fatal("expected no detection on unwatermarked text")
	}
}

func TestAccountKeyDeterministic(t *testing.T) {
	k1 := AccountKey("acct-x")
	k2 := AccountKey("acct-x")
	if k1 != k2 {
		t.Fatal("expected account key derivation to be deterministic")
	}
}
