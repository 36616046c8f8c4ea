package headers

import (
	"net/http"
	"testing"
)

func TestSieveInboundToUpstreamDropsControlAndHopByHop(t *testing.T) {
	src := http.Header{}
	src.Set("Content-Type", "application/json")
	src.Set("X-Api-Key", "secret")
	src.Set("Authorization", "Bearer xyz")
	src.Set("X-Ccf-Api-Key", "client-token")
	src.Set("X-Ccf-Debug-Skip-Anthropic", "1")
	src.Set("X-Ccfallback-Debug-Skip-Anthropic", "1")
	src.Set("Connection", "keep-alive")
	src.Set("Accept-Encoding", "gzip")
	src.Set("Host", "example.com")
	src.Set("Content-Length", "123")

	got := SieveInboundToUpstream(src)

	for _, dropped := range []string{"X-Api-Key", "Authorization", "X-Ccf-Api-Key", "X-Ccf-Debug-Skip-Anthropic", "X-Ccfallback-Debug-Skip-Anthropic", "Connection", "Accept-Encoding", "Host", "Content-Length"} {
		if got.Get(dropped) != "" {
			t.Errorf("expected %q to be dropped, got %q", dropped, got.Get(dropped))
		}
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type to survive the sieve")
	}
}

func TestSieveUpstreamToClientDropsFramingHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Content-Type", "text/event-stream")
	src.Set("Content-Length", "42")
	src.Set("Content-Encoding", "gzip")
	src.Set("Transfer-Encoding", "chunked")
	src.Set("Connection", "close")

	got := SieveUpstreamToClient(src)
	for _, dropped := range []string{"Content-Length", "Content-Encoding", "Transfer-Encoding", "Connection"} {
		if got.Get(dropped) != "" {
			t.Errorf("expected %q to be dropped", dropped)
		}
	}
	if got.Get("Content-Type") != "text/event-stream" {
		t.Error("expected Content-Type to survive the sieve")
	}
}

func TestSieveIsIdempotent(t *testing.T) {
	src := http.Header{}
	src.Set("Content-Type", "application/json")
	src.Set("X-Api-Key", "secret")

	once := SieveInboundToUpstream(src)
	twice := SieveInboundToUpstream(once)

	if len(once) != len(twice) {
		t.Fatalf("sieve is not idempotent: %v vs %v", once, twice)
	}
	for name := range once {
		if once.Get(name) != twice.Get(name) {
			t.Errorf("sieve is not idempotent for header %q", name)
		}
	}
}

func TestSieveCaseInsensitiveExclusion(t *testing.T) {
	src := http.Header{}
	src.Set("x-API-key", "secret")
	got := SieveInboundToUpstream(src)
	if len(got) != 0 {
		t.Errorf("expected case-insensitive drop, got %v", got)
	}
}
