package switchboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// segmentParser only decodes segments; it is never asked to verify anything.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// TokenPayload is the decoded, unverified payload of a bearer token.
// It must never be used for a trust decision, only for local bookkeeping
// such as the expiry hint.
type TokenPayload struct {
	Claims jwt.MapClaims
}

// DecodeToken decodes the payload segment of a header.payload.signature
// token without verifying its signature.
// It returns false on any malformation: wrong segment count, bad base64,
// or a payload that is not exactly one JSON object.
func DecodeToken(token string) (*TokenPayload, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}

	claims := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	// a literal null decodes without error but leaves no claims
	if err := dec.Decode(&claims); err != nil || claims == nil {
		return nil, false
	}
	// the payload must be exactly one object
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}

	return &TokenPayload{Claims: claims}, true
}

// ExpiresAt returns the exp claim in Unix seconds.
// ok is false if the claim is absent or not numeric.
func (p *TokenPayload) ExpiresAt() (int64, bool) {
	exp, err := p.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}

// Subject returns the sub claim as a string.
// Numeric subjects, as issued by the auth service, are formatted in decimal.
func (p *TokenPayload) Subject() (string, bool) {
	switch sub := p.Claims["sub"].(type) {
	case string:
		return sub, true
	case json.Number:
		return sub.String(), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(sub), true
	}
}

// Username returns the username claim, if any.
func (p *TokenPayload) Username() (string, bool) {
	name, ok := p.Claims["username"].(string)
	return name, ok
}
