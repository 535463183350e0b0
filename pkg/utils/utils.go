package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// ARC4Decrypt runs the RC4 stream cipher over data. Output length equals
// input length; encryption and decryption are the same operation.
//
// An empty key (transaction with no inputs) skips the key-mixing loop, so
// the identity S-box is used and the output stays deterministic.
func ARC4Decrypt(key, data []byte) []byte {
	var s [256]byte
	for i := range s {
		s[i] = byte(i)
	}
	if len(key) > 0 {
		j := byte(0)
		for i := 0; i < 256; i++ {
			j += s[i] + key[i%len(key)]
			s[i], s[j] = s[j], s[i]
		}
	}

	result := make([]byte, len(data))
	var i, j byte
	for k, b := range data {
		i++
		j += s[i]
		s[i], s[j] = s[j], s[i]
		result[k] = b ^ s[s[i]+s[j]]
	}
	return result
}

// B58Encode encodes data with a trailing 4-byte double-SHA256 checksum in
// base58. The caller supplies the version byte(s) as part of data.
func B58Encode(data []byte) string {
	checksum := DoubleSHA256(data)
	return base58.Encode(append(append([]byte{}, data...), checksum[:4]...))
}

// DoubleSHA256 computes SHA256(SHA256(data)), used for txids, block hashes
// and base58 checksums.
func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// ReverseBytes returns a reversed copy of b (internal hash order vs. display
// order).
func ReverseBytes(b []byte) []byte {
	reversed := make([]byte, len(b))
	for i := range b {
		reversed[i] = b[len(b)-1-i]
	}
	return reversed
}

// HexToBytes converts a hex string to bytes with validation.
func HexToBytes(hexStr string) ([]byte, error) {
	if len(hexStr)%2 != 0 {
		return nil, errors.New("invalid hex string: odd length")
	}
	return hex.DecodeString(hexStr)
}
