package gatewaytest

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// Device describes the client that made a login request.
type Device struct {
	IP         string
	UserAgent  string
	Client     string // parsed product name and version
	OS         string
	DeviceType string // cli, mobile, desktop, tablet or bot
}

// ExtractDevice derives a Device from the request's User-Agent and
// forwarding headers.
func ExtractDevice(r *http.Request) Device {
	ua := r.UserAgent()

	parsed := useragent.New(ua)
	client, version := parsed.Browser()
	if client == "" {
		name, v := parsed.Engine()
		client, version = name, v
	}
	if version != "" {
		client = client + " " + version
	}

	osInfo := parsed.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os = os + " " + osInfo.Version
	}

	return Device{
		IP:         clientIP(r),
		UserAgent:  ua,
		Client:     client,
		OS:         os,
		DeviceType: deviceType(parsed, ua),
	}
}

func deviceType(parsed *useragent.UserAgent, ua string) string {
	switch {
	case parsed.Bot():
		return "bot"
	case parsed.Mobile():
		return "mobile"
	case isTablet(ua):
		return "tablet"
	case !strings.HasPrefix(ua, "Mozilla/"):
		return "cli"
	default:
		return "desktop"
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return host
}

func isTablet(ua string) bool {
	ua = strings.ToLower(ua)
	for _, keyword := range []string{"ipad", "tablet", "playbook", "silk"} {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}
