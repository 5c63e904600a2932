package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/jurysane-api/config"
)

// SessionClaim is the JWT claim carrying the trial session id
const SessionClaim = "sid"

// sessionTokenTTL bounds how long a seat token is honored
const sessionTokenTTL = 7 * 24 * time.Hour

var (
	errMissingToken = errors.New("missing bearer token")
	errWrongSession = errors.New("token was issued for another session")
	errRateLimited  = errors.New("rate limit exceeded")
)

// SessionAuth guards the routes of a single trial session. Only the
// holder of the seat token issued at creation may change the session.
type SessionAuth struct {
	secret []byte
}

// NewSessionAuth returns a SessionAuth signing with secret
func NewSessionAuth(secret string) SessionAuth {
	return SessionAuth{secret: []byte(secret)}
}

// IssueToken signs a seat token for sessionID
func (a SessionAuth) IssueToken(sessionID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		SessionClaim: sessionID,
		"iat":        now.Unix(),
		"exp":        now.Add(sessionTokenTTL).Unix(),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns the session id it was issued for
func (a SessionAuth) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	sid, _ := claims[SessionClaim].(string)
	if sid == "" {
		return "", fmt.Errorf("token has no %s claim", SessionClaim)
	}
	return sid, nil
}

// Middleware requires a bearer token whose session matches the
// {session_id} route variable
func (a SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errMissingToken)
			return
		}

		sid, err := a.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		if sid != mux.Vars(r)["session_id"] {
			config.ErrorStatus("forbidden", http.StatusForbidden, w, errWrongSession)
			return
		}
		zap.S().Debugw("session authorized", "session_id", sid)
		next.ServeHTTP(w, r)
	})
}
