package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// tokenAlphabet is the RFC 3986 unreserved set minus '.' and '~', so that
// tokens survive any query or form encoding unchanged.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// RandomToken returns n characters drawn uniformly from tokenAlphabet using
// crypto/rand.
func RandomToken(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating random token: %w", err)
		}
		sb.WriteByte(tokenAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}
