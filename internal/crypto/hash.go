package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

const HashSize = 32

type Hash [HashSize]byte

// HashData hashes the input data using Blake2b-256
func HashData(data []byte) Hash {
	hash := blake2b.Sum256(data)
	return hash
}

// Twox128 computes the xxhash128 digest used to derive storage-key prefixes
// from pallet and item names: two xxhash64 runs seeded with 0 and 1,
// concatenated little endian.
func Twox128(data []byte) [16]byte {
	var out [16]byte

	h0 := xxhash.NewWithSeed(0)
	h0.Write(data)
	binary.LittleEndian.PutUint64(out[:8], h0.Sum64())

	h1 := xxhash.NewWithSeed(1)
	h1.Write(data)
	binary.LittleEndian.PutUint64(out[8:], h1.Sum64())

	return out
}

// ParseHash parses a 0x-prefixed or bare hex string into a Hash
func ParseHash(s string) (Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("invalid hash length: %d", len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}
