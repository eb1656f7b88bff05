package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for reset tokens
	"encoding/hex"  // hex encoding functions
	"errors"        // sentinel errors for token verification
	"time"          // expiry computation

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Token verification failures are collapsed into two cases so callers can
// answer with a precise message without leaking parser internals.
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// AccessToken represents a signed JWT along with its expiry. Access tokens
// are presented either in the Authorization header or in the auth cookie.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims is the decoded content of a verified access token. Only the user
// identifier is carried as a claim; everything else about the user is
// loaded fresh from the database on each request.
type Claims struct {
	UserID   string    // hex document id of the token's subject
	IssuedAt time.Time // when the token was signed, compared against password changes
}

// NewAccessToken builds and signs an HS256 JWT for a user. The JWT carries
// the standard claims: subject (sub), expiration (exp) and issued at (iat).
func NewAccessToken(secret, userID string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken checks the signature and expiry of a serialized token
// and returns its claims. Expired tokens and tampered tokens are reported
// with distinct sentinel errors.
func VerifyAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens signed with anything but HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, ErrTokenInvalid
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, ErrTokenInvalid
	}
	iat, ok := claims["iat"].(float64)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	return Claims{UserID: sub, IssuedAt: time.Unix(int64(iat), 0).UTC()}, nil
}

// ResetToken holds a freshly generated password-reset token. The Raw value
// is mailed to the user exactly once; only the SHA-256 hash is persisted,
// so a stolen database entry cannot be replayed as a reset link.
type ResetToken struct {
	Raw  string    // raw token string sent to the user
	Hash string    // hex SHA-256 of Raw, the only form stored
	Exp  time.Time // UTC expiration time, 10 minutes out
}

// NewResetToken returns a cryptographically secure random reset token, its
// storable hash and a 10 minute expiry.
func NewResetToken() (ResetToken, error) {
	raw, err := randomHex(32) // 32 bytes -> 64 hex chars
	if err != nil {
		return ResetToken{}, err
	}
	return ResetToken{
		Raw:  raw,
		Hash: HashResetRaw(raw),
		Exp:  time.Now().UTC().Add(10 * time.Minute),
	}, nil
}

// HashResetRaw returns the SHA-256 hash of a raw reset token as a hex
// string. Lookups are always by hash, never by raw value.
func HashResetRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
