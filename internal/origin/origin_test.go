package origin

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in, normalized, host string
		ok                   bool
	}{
		{"HTTPS://Example.COM:443", "https://example.com", "example.com", true},
		{"http://localhost:5173/", "http://localhost:5173", "localhost:5173", true},
		{"http://[::1]:8080", "http://[::1]:8080", "[::1]:8080", true},
		{"null", "null", "", true},
		{"", "", "", false},
		{"ftp://example.com", "", "", false},
		{"https://example.com/path", "", "", false},
		{"https://example.com/?q=1", "", "", false},
		{"https://user@example.com", "", "", false},
		{"https://example.com:0", "", "", false},
	}
	for _, c := range cases {
		normalized, host, ok := NormalizeHeader(c.in)
		if ok != c.ok || normalized != c.normalized || host != c.host {
			t.Fatalf("NormalizeHeader(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.in, normalized, host, ok, c.normalized, c.host, c.ok)
		}
	}
}

func TestIsAllowed(t *testing.T) {
	t.Run("default is same host", func(t *testing.T) {
		normalized, host, _ := NormalizeHeader("https://app.example.com")
		if !IsAllowed(normalized, host, "app.example.com", nil) {
			t.Fatalf("expected same host to be allowed")
		}
		if !IsAllowed(normalized, host, "app.example.com:443", nil) {
			t.Fatalf("expected default port to be equivalent")
		}
		if IsAllowed(normalized, host, "other.example.com", nil) {
			t.Fatalf("expected other host to be rejected")
		}
	})

	t.Run("allow list", func(t *testing.T) {
		normalized, host, _ := NormalizeHeader("http://localhost:5173")
		if !IsAllowed(normalized, host, "relay:3001", []string{"http://localhost:5173"}) {
			t.Fatalf("expected listed origin to be allowed")
		}
		if IsAllowed(normalized, host, "relay:3001", []string{"https://app.example.com"}) {
			t.Fatalf("expected unlisted origin to be rejected")
		}
		if !IsAllowed(normalized, host, "relay:3001", []string{"*"}) {
			t.Fatalf("expected star to allow everything")
		}
	})

	t.Run("null never matches a host", func(t *testing.T) {
		if IsAllowed("null", "", "localhost", nil) {
			t.Fatalf("expected null origin to be rejected")
		}
	})
}
