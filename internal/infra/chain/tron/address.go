package tron

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

const (
	addressPrefix = 0x41
	addressLen    = 21
)

// decodeAddress returns the 21-byte payload of a base58check address.
func decodeAddress(s string) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != addressLen+4 {
		return nil, fmt.Errorf("invalid address %q: length %d", s, len(raw))
	}
	payload, sum := raw[:addressLen], raw[addressLen:]
	if !bytes.Equal(checksum(payload), sum) {
		return nil, fmt.Errorf("invalid address %q: bad checksum", s)
	}
	if payload[0] != addressPrefix {
		return nil, fmt.Errorf("invalid address %q: prefix %#x", s, payload[0])
	}
	return payload, nil
}

func encodeAddress(payload []byte) string {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	return base58.Encode(append(out, checksum(payload)...))
}

// Address derives the base58 address of a secp256k1 key.
func Address(pub *ecdsa.PublicKey) string {
	addr := crypto.PubkeyToAddress(*pub)
	return encodeAddress(append([]byte{addressPrefix}, addr.Bytes()...))
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:4]
}
