package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload carried by a bearer token.
type Claims struct {
	UserID         string `json:"sub"`
	RestaurantName string `json:"restaurant_name"`
	ExpiresAtMS    int64  `json:"exp"`
}

// TokenAuthority mints and verifies HMAC-SHA256 signed bearer tokens.
// Token format: base64url(claims JSON) + "." + hex(signature).
type TokenAuthority struct {
	secret []byte
}

func NewTokenAuthority(secret string) (*TokenAuthority, error) {
	s := strings.TrimSpace(secret)
	if len(s) < 16 {
		return nil, fmt.Errorf("auth secret too short (need at least 16 bytes)")
	}
	return &TokenAuthority{secret: []byte(s)}, nil
}

func (a *TokenAuthority) Mint(userID, restaurantName string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID:         userID,
		RestaurantName: restaurantName,
		ExpiresAtMS:    now.Add(ttl).UnixMilli(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + a.sign(body), nil
}

func (a *TokenAuthority) Verify(token string, now time.Time) (Claims, error) {
	var claims Claims

	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return claims, ErrInvalidToken
	}
	if !hmac.Equal([]byte(a.sign(body)), []byte(strings.ToLower(sig))) {
		return claims, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return claims, ErrInvalidToken
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return claims, ErrInvalidToken
	}
	if claims.UserID == "" {
		return claims, ErrInvalidToken
	}
	if now.UnixMilli() >= claims.ExpiresAtMS {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func (a *TokenAuthority) sign(body string) string {
	h := hmac.New(sha256.New, a.secret)
	_, _ = h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
