package gatewaytest

import (
	"net/http/httptest"
	"testing"
)

func TestExtractDevice(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		wantType   string
		wantClient string
	}{
		{
			name:       "cli client",
			ua:         "switchboard/1",
			wantType:   "cli",
			wantClient: "switchboard 1",
		},
		{
			name:     "curl",
			ua:       "curl/8.4.0",
			wantType: "cli",
		},
		{
			name:     "desktop chrome",
			ua:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantType: "desktop",
		},
		{
			name:     "iphone",
			ua:       "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantType: "mobile",
		},
		{
			name:     "tablet pc",
			ua:       "Mozilla/4.0 (compatible; MSIE 7.0; Windows NT 6.2; ARM; Trident/6.0; Touch; .NET4.0E; .NET4.0C; Tablet PC 2.0)",
			wantType: "tablet",
		},
		{
			name:     "crawler",
			ua:       "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			wantType: "bot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/auth/login", nil)
			r.Header.Set("User-Agent", tt.ua)

			d := ExtractDevice(r)
			if d.DeviceType != tt.wantType {
				t.Errorf("DeviceType = %q, want %q", d.DeviceType, tt.wantType)
			}
			if tt.wantClient != "" && d.Client != tt.wantClient {
				t.Errorf("Client = %q, want %q", d.Client, tt.wantClient)
			}
			if d.UserAgent != tt.ua {
				t.Errorf("UserAgent = %q, want %q", d.UserAgent, tt.ua)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "10.0.0.5:51234", want: "10.0.0.5"},
		{name: "remote addr without port", remote: "10.0.0.5", want: "10.0.0.5"},
		{
			name:    "forwarded for",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			remote:  "10.0.0.1:80",
			want:    "203.0.113.7",
		},
		{
			name:    "invalid forwarded for falls through",
			headers: map[string]string{"X-Forwarded-For": "garbage", "X-Real-IP": "198.51.100.2"},
			remote:  "10.0.0.1:80",
			want:    "198.51.100.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
