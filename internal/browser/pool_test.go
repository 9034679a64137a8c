package browser

import "testing"

func TestNormalizeRemoteURLRewritesHTTPToWS(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"http://host:9222":       "ws://host:9222",
		"https://host:9222":      "wss://host:9222",
		"ws://host:9222/connect": "ws://host:9222/connect",
		"  http://host  ":        "ws://host",
	}
	for in, want := range cases {
		if got := normalizeRemoteURL(in); got != want {
			t.Errorf("normalizeRemoteURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNextUserAgentRotatesThroughAgents(t *testing.T) {
	p := &Pool{}
	first := p.nextUserAgent()
	var sawDifferent bool
	for i := 0; i < 10; i++ {
		if p.nextUserAgent() != first {
			sawDifferent = true
		}
	}
	if !sawDifferent {
		t.Fatalf("expected user agent rotation across calls")
	}
}

func TestConnectBackoffScheduleStartsImmediateAndGrows(t *testing.T) {
	schedule := connectBackoffSchedule()
	if len(schedule) != 5 {
		t.Fatalf("expected 5 attempts, got %d", len(schedule))
	}
	if schedule[0] != 0 {
		t.Fatalf("expected the first attempt to have no wait, got %v", schedule[0])
	}
	for i := 1; i < len(schedule); i++ {
		if schedule[i] <= schedule[i-1] {
			t.Fatalf("expected strictly increasing backoff, got %v", schedule)
		}
	}
}
