package auth

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// segmentParser decodes base64url JWT segments, tolerating trailing padding.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// stdToURL maps the standard base64 alphabet onto the URL-safe one so that
// segments produced by lenient encoders still decode.
var stdToURL = strings.NewReplacer("+", "-", "/", "_")

// DecodeClaims returns the payload of a JWT-shaped string without verifying
// its signature. It reports false when the input does not have exactly three
// dot-separated segments, or when the payload segment is not base64url
// encoded JSON.
//
// The result is a display and UI-gating convenience only. It must never be
// used as an authorization decision; the backend verifies tokens itself.
func DecodeClaims(token string) (jwt.MapClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	raw, err := segmentParser.DecodeSegment(stdToURL.Replace(parts[1]))
	if err != nil {
		return nil, false
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		return nil, false
	}
	return claims, true
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if claims == nil {
		return ""
	}
	s, _ := claims[name].(string)
	return s
}
