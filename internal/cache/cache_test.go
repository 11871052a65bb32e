package cache

import "testing"

func TestRankingKey(t *testing.T) {
	tests := []struct {
		period string
		kind   int
		want   string
	}{
		{"1h", 1, "trending:1h:1"},
		{"24h", 31337, "trending:24h:31337"},
		{"7d", 9, "trending:7d:9"},
	}

	for _, tt := range tests {
		if got := rankingKey(tt.period, tt.kind); got != tt.want {
			t.Errorf("rankingKey(%q, %d) = %q, want %q", tt.period, tt.kind, got, tt.want)
		}
	}
}

func TestFeedKey(t *testing.T) {
	if got := feedKey("alice"); got != "feed:alice" {
		t.Errorf("feedKey(alice) = %q, want feed:alice", got)
	}
}
