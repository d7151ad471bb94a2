package auth

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"
)

const (
	issuer   = "uhcdb"
	stateTTL = 10 * time.Minute

	typSession = "session"
	typState   = "state"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService signs and verifies session tokens and OAuth state values.
type TokenService struct {
	key *rsa.PrivateKey
	pub *rsa.PublicKey
	kid string
	ttl time.Duration

	// Now is the clock used to issue and check tokens.
	Now func() time.Time
}

func NewTokenService(key *rsa.PrivateKey, pub *rsa.PublicKey, ttl time.Duration) *TokenService {
	h := sha256.Sum256(pub.N.Bytes())
	return &TokenService{
		key: key,
		pub: pub,
		kid: base64.RawURLEncoding.EncodeToString(h[:8]),
		ttl: ttl,
		Now: time.Now,
	}
}

// TTL is the lifetime of a session token.
func (s *TokenService) TTL() time.Duration { return s.ttl }

func (s *TokenService) sign(claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}

func (s *TokenService) parse(raw, typ string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims["typ"] != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueSession signs a session token for the user id.
func (s *TokenService) IssueSession(userID string) (string, error) {
	now := s.Now()
	return s.sign(jwt.MapClaims{
		"iss": issuer,
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": ksuid.New().String(),
		"typ": typSession,
	})
}

// VerifySession returns the user id of a valid session token.
func (s *TokenService) VerifySession(raw string) (string, error) {
	claims, err := s.parse(raw, typSession)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// IssueState signs the OAuth state value carrying the URL to return to
// after login.
func (s *TokenService) IssueState(returnURL string) (string, error) {
	now := s.Now()
	return s.sign(jwt.MapClaims{
		"iss": issuer,
		"iat": now.Unix(),
		"exp": now.Add(stateTTL).Unix(),
		"jti": ksuid.New().String(),
		"typ": typState,
		"ret": SafeReturnURL(returnURL),
	})
}

// VerifyState returns the return URL carried in a valid state value.
func (s *TokenService) VerifyState(raw string) (string, error) {
	claims, err := s.parse(raw, typState)
	if err != nil {
		return "", err
	}
	ret, _ := claims["ret"].(string)
	return SafeReturnURL(ret), nil
}

// JWKS returns the public key as a JSON Web Key Set.
func (s *TokenService) JWKS() map[string]any {
	return map[string]any{"keys": []any{map[string]any{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": s.kid,
		"n":   base64.RawURLEncoding.EncodeToString(s.pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.pub.E)).Bytes()),
	}}}
}

// SafeReturnURL keeps only same-site paths, falling back to /home.
func SafeReturnURL(u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return "/home"
	}
	return u
}
