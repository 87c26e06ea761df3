package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllow_UserLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxPerHour: 3, MaxIPPerHour: 100, Window: time.Hour, Clock: clock})
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if result := limiter.Allow("user-1", "203.0.113.7"); !result.Allowed {
			t.Fatalf("attempt %d blocked: %s", i+1, result.Reason)
		}
		clock.Advance(time.Minute)
	}

	result := limiter.Allow("USER-1 ", "203.0.113.8")
	if result.Allowed {
		t.Fatal("fourth attempt within the window should be blocked")
	}
	if result.Reason != "user_limit" {
		t.Errorf("reason = %q, want user_limit", result.Reason)
	}
	if result.RetryAfter != 57*time.Minute {
		t.Errorf("retry after = %v, want 57m", result.RetryAfter)
	}

	if result := limiter.Allow("user-2", "203.0.113.7"); !result.Allowed {
		t.Errorf("other users are not affected, got %s", result.Reason)
	}

	clock.Advance(57 * time.Minute)
	if result := limiter.Allow("user-1", "203.0.113.7"); !result.Allowed {
		t.Errorf("attempt after the window should be allowed, got %s", result.Reason)
	}
}

func TestAllow_IPLimit(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxPerHour: 100, MaxIPPerHour: 2, Window: time.Hour, Clock: clock})
	defer limiter.Close()

	limiter.Allow("user-1", "203.0.113.7")
	limiter.Allow("user-2", "203.0.113.7")

	result := limiter.Allow("user-3", "203.0.113.7")
	if result.Allowed || result.Reason != "ip_limit" {
		t.Fatalf("result = %+v, want ip_limit rejection", result)
	}
	if result := limiter.Allow("user-3", "198.51.100.1"); !result.Allowed {
		t.Errorf("other IPs are not affected, got %s", result.Reason)
	}
}

func TestAllow_RejectedAttemptsAreNotCounted(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{MaxPerHour: 1, MaxIPPerHour: 10, Window: time.Hour, Clock: clock})
	defer limiter.Close()

	limiter.Allow("user-1", "203.0.113.7")
	for i := 0; i < 5; i++ {
		limiter.Allow("user-1", "203.0.113.7")
	}
	// only the first attempt reached the IP counter
	for i := 0; i < 9; i++ {
		if result := limiter.Allow("user-x"+string(rune('a'+i)), "203.0.113.7"); !result.Allowed {
			t.Fatalf("attempt %d blocked by %s", i, result.Reason)
		}
	}
}

func TestAllow_ZeroLimitDisablesLayer(t *testing.T) {
	limiter := New(&Config{MaxPerHour: 0, MaxIPPerHour: 0, Clock: newMockClock()})
	defer limiter.Close()

	for i := 0; i < 50; i++ {
		if result := limiter.Allow("user-1", "203.0.113.7"); !result.Allowed {
			t.Fatalf("attempt %d blocked with limits disabled", i)
		}
	}
}

func TestGetClientIP_TrustProxy(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expected   string
	}{
		{
			name:       "TrustProxy=true, XFF rightmost public IP",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.50", // Rightmost non-private
		},
		{
			name:       "TrustProxy=true, XFF all private",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "10.0.0.1", // Last one when all private
		},
		{
			name:       "TrustProxy=true, X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "10.0.0.1:12345",
			trustProxy: true,
			expected:   "203.0.113.51",
		},
		{
			name:       "TrustProxy=false, ignores XFF",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100", // Uses RemoteAddr, ignores spoofed XFF
		},
		{
			name:       "TrustProxy=false, ignores X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "203.0.113.51"},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
		{
			name:       "No headers, RemoteAddr only",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100:54321",
			trustProxy: true,
			expected:   "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			headers:    map[string]string{},
			remoteAddr: "192.168.1.100",
			trustProxy: false,
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			got := GetClientIP(r, tt.trustProxy)
			if got != tt.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetClientIP_SpoofingPrevention(t *testing.T) {
	// Attacker sends fake X-Forwarded-For header
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4") // Attacker-supplied
	r.RemoteAddr = "192.168.1.100:54321"       // Real connection

	// With TrustProxy=false, the fake header is ignored
	got := GetClientIP(r, false)
	if got != "192.168.1.100" {
		t.Errorf("Should ignore X-Forwarded-For when TrustProxy=false, got %q", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxPerHour != 10 || cfg.MaxIPPerHour != 30 || cfg.Window != time.Hour {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
