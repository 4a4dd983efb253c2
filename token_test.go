package switchboard

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeToken assembles an unsigned header.payload.signature token around payload.
func makeToken(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".c2lnbmF0dXJl"
}

func TestDecodeToken(t *testing.T) {
	token := makeToken(`{"sub":42,"username":"alice","exp":1700000000,"iat":1699913600}`)

	payload, ok := DecodeToken(token)
	require.True(t, ok)

	exp, ok := payload.ExpiresAt()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), exp)

	sub, ok := payload.Subject()
	assert.True(t, ok)
	assert.Equal(t, "42", sub)

	name, ok := payload.Username()
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestDecodeTokenPaddedSegment(t *testing.T) {
	header := base64.URLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body := base64.URLEncoding.EncodeToString([]byte(`{"exp":1700000000,"ab":1}`))

	payload, ok := DecodeToken(header + "." + body + ".")
	require.True(t, ok, "padded base64 should still decode")

	exp, ok := payload.ExpiresAt()
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), exp)
}

func TestDecodeTokenStringSubject(t *testing.T) {
	payload, ok := DecodeToken(makeToken(`{"sub":"u-1"}`))
	require.True(t, ok)

	sub, ok := payload.Subject()
	assert.True(t, ok)
	assert.Equal(t, "u-1", sub)

	_, ok = payload.ExpiresAt()
	assert.False(t, ok, "missing exp")

	_, ok = payload.Username()
	assert.False(t, ok)
}

func TestDecodeTokenMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "one segment", token: "abc"},
		{name: "two segments", token: "abc.def"},
		{name: "four segments", token: "a.b.c.d"},
		{name: "bad base64", token: "eyJhbGciOiJIUzI1NiJ9.!!!.sig"},
		{name: "payload not json", token: makeToken("not json")},
		{name: "payload is array", token: makeToken(`[1,2,3]`)},
		{name: "payload is null", token: makeToken(`null`)},
		{name: "payload is number", token: makeToken(`17`)},
		{name: "trailing garbage", token: makeToken(`{"exp":1700000000} garbage`)},
		{name: "two objects", token: makeToken(`{"exp":1700000000}{"exp":1}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, ok := DecodeToken(tt.token)
			assert.False(t, ok)
			assert.Nil(t, payload)
		})
	}
}

func TestTokenPayloadNonNumericExpiry(t *testing.T) {
	payload, ok := DecodeToken(makeToken(`{"exp":"tomorrow"}`))
	require.True(t, ok)

	_, ok = payload.ExpiresAt()
	assert.False(t, ok)
}

func TestNewSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiry from token", func(t *testing.T) {
		s := NewSession(makeToken(`{"exp":1741000000}`), 1, "alice", now, 24*time.Hour)
		assert.Equal(t, int64(1741000000), s.ExpiresAt)
		assert.Equal(t, int64(1), s.UserID)
		assert.Equal(t, "alice", s.Username)
	})

	t.Run("fallback when undecodable", func(t *testing.T) {
		s := NewSession("opaque-token", 1, "alice", now, 24*time.Hour)
		assert.Equal(t, now.Unix()+86400, s.ExpiresAt)
	})

	t.Run("fallback when payload has trailing data", func(t *testing.T) {
		s := NewSession(makeToken(`{"exp":1741000000} garbage`), 1, "alice", now, 24*time.Hour)
		assert.Equal(t, now.Unix()+86400, s.ExpiresAt)
	})

	t.Run("fallback when exp missing", func(t *testing.T) {
		s := NewSession(makeToken(`{"sub":1}`), 1, "alice", now, time.Hour)
		assert.Equal(t, now.Add(time.Hour).Unix(), s.ExpiresAt)
	})
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Unix(1000, 0)

	assert.True(t, Session{ExpiresAt: 999}.IsExpired(now))
	assert.True(t, Session{ExpiresAt: 1000}.IsExpired(now), "expiry at exactly now counts as expired")
	assert.False(t, Session{ExpiresAt: 1001}.IsExpired(now))
	assert.Equal(t, time.Unix(1001, 0), Session{ExpiresAt: 1001}.Expiry())
}
