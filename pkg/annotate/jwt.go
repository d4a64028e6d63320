package annotate

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// JWT peeks at bearer tokens in the Authorization header and records their
// unverified claims:
//
//	jwt.sub = subject claim
//	jwt.iss = issuer claim
//	jwt.exp = expiry, RFC 3339
//
// The token is decoded, never verified: annotation runs client side where
// no signing key is available, and the claims are diagnostic only. It runs
// before header redaction, so it sees the real Authorization value even
// when the stored record masks it.
type JWT struct{}

// Annotate implements capture.Annotator.
func (JWT) Annotate(rec *tracelog.Record) {
	auth := rec.RequestHeaders["Authorization"]
	if auth == "" {
		auth = rec.RequestHeaders["authorization"]
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		set(rec, "jwt.sub", sub)
	}
	if iss, err := claims.GetIssuer(); err == nil && iss != "" {
		set(rec, "jwt.iss", iss)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		set(rec, "jwt.exp", exp.Time.UTC().Format(time.RFC3339))
	}
}
