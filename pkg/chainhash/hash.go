// Copyright (c) 2017-2018 The nox developers

// Package chainhash implements the fixed-size digest used throughout the
// blockchain core to identify headers, blocks and transactions.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/dchest/blake256"
)

// HashSize is the number of bytes in a hash produced by this package.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error that indicates the caller specified a
// hash string that has too many characters.
var ErrHashStrSize = fmt.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// Hash is a 32-byte double-hash digest.
type Hash [HashSize]byte

// ZeroHash is the Hash value of all zero bytes, used as the previous-hash of
// a genesis header.
var ZeroHash = Hash{}

// String returns the Hash as a hex-encoded, byte-reversed (big-endian for
// display) string.
func (h Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		h[i], h[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(h[:])
}

// IsEqual returns true if target is the same hash as h.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return *h == *target
}

// SetBytes sets the bytes which represent the hash.
func (h *Hash) SetBytes(newHash []byte) error {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return fmt.Errorf("invalid hash length of %v, want %v", nhlen, HashSize)
	}
	copy(h[:], newHash)
	return nil
}

// DoubleHashB calculates hash(hash(b)) and returns the resulting bytes.
func DoubleHashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// DoubleHashH calculates hash(hash(b)) and returns the resulting bytes as a
// Hash.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}

// Blake256HashH hashes b with blake256 and returns the resulting bytes as a
// Hash. This backs the "scrypt_proof_of_work" testnet-variant PoW selection
// named in the configuration surface: blake256 stands in for the alternate
// digest, the way the teacher swaps hash functions per network in
// common/hash/hashfuncs_bake256.go.
func Blake256HashH(b []byte) Hash {
	var out Hash
	digest := blake256.New()
	digest.Write(b)
	copy(out[:], digest.Sum(nil))
	return out
}

// HashToBig converts a Hash into a big.Int for proof-of-work comparisons
// against a target, reversing byte order the same way String does: a Hash
// is stored little-endian but big.Int wants big-endian bytes. Grounded on
// _examples/Qitmeer-qitmeer/core/types/pow/diff.go's HashToBig.
func HashToBig(h Hash) *big.Int {
	for i := 0; i < HashSize/2; i++ {
		h[i], h[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return new(big.Int).SetBytes(h[:])
}

// NewHashFromStr creates a Hash from a hex hash string.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the byte-reversed hexadecimal string encoding of a Hash to
// a destination.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxHashStringSize {
		return ErrHashStrSize
	}

	var srcBytes []byte
	if len(src)%2 == 0 {
		srcBytes = []byte(src)
	} else {
		srcBytes = make([]byte, 1+len(src))
		srcBytes[0] = '0'
		copy(srcBytes[1:], src)
	}

	var reversedHash Hash
	_, err := hex.Decode(reversedHash[HashSize-hex.DecodedLen(len(srcBytes)):], srcBytes)
	if err != nil {
		return err
	}

	for i, b := range reversedHash[:HashSize/2] {
		reversedHash[i], reversedHash[HashSize-1-i] = reversedHash[HashSize-1-i], b
	}
	*dst = reversedHash
	return nil
}
