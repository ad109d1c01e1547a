package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const tokenBytes = 32

// generateToken returns a random hex token to embed in a sign-in link.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// deriveToken returns the stored form of a raw token: keyed BLAKE2b-256, hex.
// Keys longer than 64 bytes are hashed down first.
func deriveToken(key []byte, raw string) (string, error) {
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("derive token: %w", err)
	}
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ValidEmail reports whether addr is a bare address with a local part and a domain.
func ValidEmail(addr string) bool {
	if addr == "" || strings.Count(addr, "@") != 1 {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	local, domain, _ := strings.Cut(addr, "@")
	return local != "" && domain != ""
}
