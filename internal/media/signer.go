package media

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
)

// Signer signs URL payloads on behalf of a service account.
type Signer interface {
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// KeySigner signs with a service account private key.
type KeySigner struct {
	email string
	key   *rsa.PrivateKey
}

// LoadKeySigner accepts either raw service account JSON or a path to it.
func LoadKeySigner(value string) (*KeySigner, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("media: signer key is empty")
	}
	if strings.HasPrefix(value, "{") {
		return NewKeySigner([]byte(value))
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("media: read signer key: %w", err)
	}
	return NewKeySigner(data)
}

// NewKeySigner parses a service account JSON key.
func NewKeySigner(data []byte) (*KeySigner, error) {
	jwt, err := google.JWTConfigFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("media: service account key: %w", err)
	}
	if jwt.Email == "" {
		return nil, errors.New("media: client_email missing")
	}
	block, _ := pem.Decode(jwt.PrivateKey)
	if block == nil {
		return nil, errors.New("media: private_key is not PEM")
	}
	rsaKey, err := parseRSA(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &KeySigner{email: jwt.Email, key: rsaKey}, nil
}

func parseRSA(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("media: private key is not RSA")
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("media: parse private key: %w", err)
	}
	return rsaKey, nil
}

// Email implements Signer.
func (s *KeySigner) Email() string {
	if s == nil {
		return ""
	}
	return s.email
}

// SignBytes implements Signer with RSA PKCS#1 v1.5 over SHA-256.
func (s *KeySigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("media: signer not initialised")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
}
