// Package storage signs expiring download links for generated documents.
package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidLink is returned for malformed or forged tokens.
	ErrInvalidLink = errors.New("storage: invalid download link")
	// ErrLinkExpired is returned once the token's expiry has passed.
	ErrLinkExpired = errors.New("storage: download link expired")
)

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token naming the resource and the file it renders as.
func (s *SignedURLSigner) Generate(resourceID, name string) (string, time.Time, error) {
	if resourceID == "" || name == "" || strings.Contains(resourceID, ".") {
		return "", time.Time{}, fmt.Errorf("storage: resource id and name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("storage: signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedName := base64.RawURLEncoding.EncodeToString([]byte(name))
	signature := s.sign(resourceID, ts, encodedName)
	return strings.Join([]string{resourceID, ts, encodedName, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded resource id and file name.
func (s *SignedURLSigner) Parse(token string) (resourceID, name string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrInvalidLink
	}
	resourceID, ts, encodedName, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(resourceID, ts, encodedName)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, ErrInvalidLink
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidLink
	}
	rawName, err := base64.RawURLEncoding.DecodeString(encodedName)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidLink
	}
	expiresAt = time.Unix(expUnix, 0).UTC()
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrLinkExpired
	}
	return resourceID, string(rawName), expiresAt, nil
}

func (s *SignedURLSigner) sign(resourceID, ts, encodedName string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(resourceID + "|" + ts + "|" + encodedName))
	return hex.EncodeToString(mac.Sum(nil))
}
