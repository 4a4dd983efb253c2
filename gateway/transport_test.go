package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticSource struct {
	token string
}

func (s staticSource) Token() (string, bool) {
	return s.token, s.token != ""
}

func echoAuthorization(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("Authorization"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, client *http.Client, req *http.Request) string {
	t.Helper()

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	return string(body)
}

func TestBearerTransport(t *testing.T) {
	srv := echoAuthorization(t)

	tests := []struct {
		name   string
		source TokenSource
		header string
		want   string
	}{
		{name: "adds active token", source: staticSource{token: "tok-1"}, want: "Bearer tok-1"},
		{name: "no token", source: staticSource{}, want: ""},
		{name: "explicit header wins", source: staticSource{token: "tok-1"}, header: "Bearer other", want: "Bearer other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewAuthorizedClient(tt.source, time.Second)

			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/users", nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			if got := get(t, client, req); got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
			if tt.header == "" && req.Header.Get("Authorization") != "" {
				t.Error("Caller's request was modified")
			}
		})
	}
}

func TestNewAuthorizedClientDefaultTimeout(t *testing.T) {
	client := NewAuthorizedClient(staticSource{}, 0)
	if client.Timeout != DefaultConfig().Timeout {
		t.Errorf("Timeout = %v, want %v", client.Timeout, DefaultConfig().Timeout)
	}
}
