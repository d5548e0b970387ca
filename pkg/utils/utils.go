package utils

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// RandString returns a cryptographically random alphanumeric string of the
// given length. Secret ids are bearer capabilities, so this always reads
// from crypto/rand rather than a seeded PRNG.
func RandString(length int) string {
	const alphaNum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	result := make([]byte, length)
	charLen := big.NewInt(int64(len(alphaNum)))
	for i := range result {
		num, _ := rand.Int(rand.Reader, charLen)
		result[i] = alphaNum[num.Int64()]
	}
	return string(result)
}

func B64E(data []byte) string {
	return base64.URLEncoding.EncodeToString(data)
}

func B64D(data string) ([]byte, error) {
	return base64.URLEncoding.DecodeString(data)
}
