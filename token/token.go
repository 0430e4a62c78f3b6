// Package token implements the session token codec: generating and
// parsing the opaque string a client presents to prove it already
// completed some out-of-band authentication step.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Strategy names how a token was produced and must therefore be parsed.
type Strategy int

const (
	// EmailLink is JSON-then-base64, no signature. Integrity is assumed
	// to come from the delivery channel (a single-use emailed link) —
	// parse never verifies it.
	EmailLink Strategy = iota
	// JWTBearer is a real HMAC-SHA256-signed JWT, for callers that want
	// parse to actually reject a tampered or expired token instead of
	// trusting the caller to check.
	JWTBearer
)

func (s Strategy) String() string {
	switch s {
	case EmailLink:
		return "EmailLink"
	case JWTBearer:
		return "JWTBearer"
	default:
		return "Unknown"
	}
}

const tokenLifetime = 7 * 24 * time.Hour

// Error is returned by Generate/Parse on any codec failure: base64
// decoding fails, or the JSON does not carry all required fields.
type Error struct {
	cause error
}

func (e *Error) Error() string { return fmt.Sprintf("token: %v", e.cause) }
func (e *Error) Unwrap() error { return e.cause }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{cause: err}
}

// Parsed is the decoded payload of a token: expiry, the session id it
// authorizes, and the user it belongs to.
type Parsed struct {
	ExpiresAt   time.Time `json:"expires_at"`
	DBSessionID string    `json:"db_session_id"`
	UserID      string    `json:"user_id"`
}

// emailLinkPayload is the exact wire shape of an EmailLink token.
type emailLinkPayload struct {
	ExpiresAt   time.Time `json:"expires_at"`
	DBSessionID string    `json:"db_session_id"`
	UserID      string    `json:"user_id"`
}

// Generate produces a fresh session id, its expiry, and the encoded
// token string for the given user and strategy. Expiry is always now
// plus the fixed token lifetime; the clock is the process wall clock.
func Generate(userID string, strategy Strategy, signingKey []byte) (sessionID string, expiresAt time.Time, encoded string, err error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(tokenLifetime)

	switch strategy {
	case JWTBearer:
		claims := jwt.RegisteredClaims{
			Subject:   userID,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		}
		t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		encoded, err = t.SignedString(signingKey)
		if err != nil {
			return "", time.Time{}, "", wrap(err)
		}
		return id, expiresAt, encoded, nil
	default: // EmailLink
		payload := emailLinkPayload{
			ExpiresAt:   expiresAt,
			DBSessionID: id,
			UserID:      userID,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", time.Time{}, "", wrap(err)
		}
		return id, expiresAt, base64.StdEncoding.EncodeToString(raw), nil
	}
}

// Parse decodes a token produced by Generate. For EmailLink, expiry is
// NOT enforced here — callers may enforce it themselves. For JWTBearer
// the signature (and therefore tamper-resistance) is always verified,
// since that is the entire point of choosing that strategy.
func Parse(encoded string, strategy Strategy, signingKey []byte) (*Parsed, error) {
	switch strategy {
	case JWTBearer:
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(encoded, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return signingKey, nil
		})
		if err != nil {
			return nil, wrap(err)
		}
		if claims.ExpiresAt == nil || claims.ID == "" {
			return nil, wrap(errors.New("missing required claim"))
		}
		return &Parsed{
			ExpiresAt:   claims.ExpiresAt.Time,
			DBSessionID: claims.ID,
			UserID:      claims.Subject,
		}, nil
	default: // EmailLink
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, wrap(err)
		}
		var payload emailLinkPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, wrap(err)
		}
		if payload.DBSessionID == "" || payload.UserID == "" || payload.ExpiresAt.IsZero() {
			return nil, wrap(errors.New("token missing required fields"))
		}
		return &Parsed{
			ExpiresAt:   payload.ExpiresAt,
			DBSessionID: payload.DBSessionID,
			UserID:      payload.UserID,
		}, nil
	}
}
