package handler

import (
	"time"

	"github.com/cockroachdb/errors"
	jwt "github.com/golang-jwt/jwt/v5"

	"omechat/backend/internal/models"
	"omechat/backend/internal/storage"
)

const issuer = "omechat-gateway"

// ErrInvalidToken covers malformed, expired and unknown session tokens.
var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and validates HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue генерує JWT з ID сесії та терміном дії.
func (t *TokenIssuer) Issue(sessionID string) (string, error) {
	now := t.now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	return signed, errors.Wrap(err, "sign session token")
}

// Validate returns the session id carried by a valid token.
func (t *TokenIssuer) Validate(token string) (string, error) {
	if token == "" {
		return "", errors.Wrap(ErrInvalidToken, "empty")
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.SessionID == "" {
		return "", errors.Wrap(ErrInvalidToken, "missing sid")
	}
	return claims.SessionID, nil
}

// resolveSession turns a token into an active session.
func (h *Handler) resolveSession(token string) (*models.UserSession, error) {
	sessionID, err := h.Tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	session, err := h.Storage.GetSession(sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(ErrInvalidToken, "unknown session %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, errors.Wrapf(ErrInvalidToken, "inactive session %s", sessionID)
	}
	return session, nil
}
