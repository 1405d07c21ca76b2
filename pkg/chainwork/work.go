// Copyright (c) 2017-2018 The nox developers

// Package chainwork implements the compact-bits difficulty encoding and the
// per-header work accumulator used to decide which of the candidate and
// confirmed chains has done the most proof-of-work.
package chainwork

import "math/big"

var (
	bigOne    = big.NewInt(1)
	oneLsh256 = new(big.Int).Lsh(bigOne, 256)
)

// CompactToBig converts a compact representation of a whole number N to a
// big.Int. The representation is the IEEE754-style exponent/sign/mantissa
// packing used throughout the Bitcoin family for "bits".
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a whole number N to its compact representation.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CalcWork returns the work represented by block bits. Per spec.md §3,
// work = 2^256 / (target + 1); a non-positive target (which should never
// occur on a valid header) yields zero work rather than dividing by a
// non-positive number.
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	denominator := new(big.Int).Add(target, bigOne)
	return new(big.Int).Div(oneLsh256, denominator)
}

// Sum returns the total work of a list of per-header bits values.
func Sum(bitsList []uint32) *big.Int {
	total := big.NewInt(0)
	for _, bits := range bitsList {
		total.Add(total, CalcWork(bits))
	}
	return total
}

// Work is a monotone accumulator of proof-of-work, the scalar spec.md's
// GLOSSARY defines as summing per-header 2^256/(target+1). It wraps big.Int
// so header branches, chain tips and the facade's work slots all share one
// comparable, addable type instead of passing *big.Int around untyped.
type Work struct {
	v *big.Int
}

// Zero returns the zero-work value.
func Zero() Work {
	return Work{v: big.NewInt(0)}
}

// NewFromBits returns the work contributed by a single header's bits field.
func NewFromBits(bits uint32) Work {
	return Work{v: CalcWork(bits)}
}

// Add returns w + other without mutating either operand.
func (w Work) Add(other Work) Work {
	return Work{v: new(big.Int).Add(w.bigInt(), other.bigInt())}
}

// Cmp returns -1, 0, or 1 as w is less than, equal to, or greater than other.
func (w Work) Cmp(other Work) int {
	return w.bigInt().Cmp(other.bigInt())
}

// GreaterThan reports whether w > other.
func (w Work) GreaterThan(other Work) bool {
	return w.Cmp(other) > 0
}

// String renders the work as a decimal string, for logs.
func (w Work) String() string {
	return w.bigInt().String()
}

func (w Work) bigInt() *big.Int {
	if w.v == nil {
		return big.NewInt(0)
	}
	return w.v
}
