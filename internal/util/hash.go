package util

import "crypto/sha256"

func SHA256(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
