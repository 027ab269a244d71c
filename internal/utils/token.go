package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"
)

// GenerateOTP returns a 6-digit numeric code in the range 100000–999999.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(100000)).String(), nil
}

// HashSecret returns the hex SHA-256 of s.  Used for OTP codes so the
// pending store never holds them in clear.
func HashSecret(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SecretEqual compares a candidate against a stored HashSecret value in
// constant time.
func SecretEqual(candidate, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(candidate)), []byte(storedHash)) == 1
}

// RandomToken returns n random bytes encoded as unpadded base64url.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomBase36 returns n random characters from [0-9a-z].
func RandomBase36(n int) string {
	out := make([]byte, n)
	for i := range out {
		k, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			out[i] = base36[i%len(base36)]
			continue
		}
		out[i] = base36[k.Int64()]
	}
	return string(out)
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Clean trims surrounding whitespace.
func Clean(s string) string { return strings.TrimSpace(s) }

// CleanEmail trims and lower-cases an email address.
func CleanEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsEmail reports whether s looks like an email address after cleaning.
func IsEmail(s string) bool { return emailRe.MatchString(CleanEmail(s)) }
