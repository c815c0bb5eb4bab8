package tron

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// addressPrefix is the version byte of mainnet and testnet Tron addresses.
const addressPrefix = 0x41

// HexToBase58 converts a hex address ("41..." or "0x41...") to the
// base58check form wallets display ("T...").
func HexToBase58(addr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if err != nil {
		return "", fmt.Errorf("invalid hex address %q: %w", addr, err)
	}
	if len(raw) != 21 || raw[0] != addressPrefix {
		return "", fmt.Errorf("invalid tron address %q", addr)
	}
	sum := checksum(raw)
	return base58.Encode(append(raw, sum[:]...)), nil
}

// Base58ToHex converts a base58check address to hex, verifying its checksum.
func Base58ToHex(addr string) (string, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return "", fmt.Errorf("invalid base58 address %q: %w", addr, err)
	}
	if len(raw) != 25 || raw[0] != addressPrefix {
		return "", fmt.Errorf("invalid tron address %q", addr)
	}
	payload, sum := raw[:21], raw[21:]
	want := checksum(payload)
	if !bytes.Equal(sum, want[:]) {
		return "", fmt.Errorf("checksum mismatch for %q", addr)
	}
	return hex.EncodeToString(payload), nil
}

// ToBase58 returns addr in base58check form, converting from hex when needed.
// Unrecognised input is returned unchanged.
func ToBase58(addr string) string {
	if addr == "" || strings.HasPrefix(addr, "T") {
		return addr
	}
	b58, err := HexToBase58(addr)
	if err != nil {
		return addr
	}
	return b58
}

func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}
