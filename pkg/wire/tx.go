// Copyright (c) 2017-2018 The nox developers

package wire

import (
	"encoding/binary"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
)

// MaxMoney is the default ceiling used by validator.check(tx, max_money),
// matching config.Config.MaxMoney's default; callers override it through
// that field.
const MaxMoney = 21000000 * 100000000

// OutPoint references a single output of a prior transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// TxIn is a transaction input: the outpoint it spends, its unlocking
// script, and its sequence number (used for relative locktime / RBF).
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Witness          [][]byte
	Sequence         uint32

	// SpentAtFork, when populated by the store (Store.PopulateOutput /
	// PopulatePoolTransaction, spec.md §6), names the fork height at
	// which the referenced output was consumed. A zero value means
	// unspent as of the populated view.
	SpentAtFork uint64
	// ValueIn caches the referenced output's value once populated, so
	// validator.accept can compute fees without a second store round
	// trip.
	ValueIn uint64
}

// TxOut is a transaction output: its value in satoshis and its locking
// script.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// Transaction is the consensus object of spec.md §3.
type Transaction struct {
	Version  uint32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32

	// cachedHash/cachedWitnessHash memoize Hash/WitnessHash; they are set
	// once on first computation and never invalidated, matching the
	// teacher's treatment of block/tx objects as immutable once observed
	// by a validator.
	cachedHash        *chainhash.Hash
	cachedWitnessHash *chainhash.Hash
}

// IsCoinBase reports whether tx is a coinbase transaction: exactly one
// input, referencing a null previous outpoint.
func (t *Transaction) IsCoinBase() bool {
	if len(t.TxIn) != 1 {
		return false
	}
	prev := &t.TxIn[0].PreviousOutPoint
	return prev.Hash == chainhash.ZeroHash && prev.Index == wireNullIndex
}

const wireNullIndex = 0xffffffff

// serializeNonWitness writes the canonical, witness-discount-free encoding
// used for sizing and hashing. spec.md §4.6 contracts this as the sizing
// basis unless BIP141 weighting is explicitly configured (the noted
// witness-discount TODO).
func (t *Transaction) serializeNonWitness() []byte {
	size := 4 + 4 // version + locktime
	size += varIntLen(uint64(len(t.TxIn)))
	for _, in := range t.TxIn {
		size += chainhash.HashSize + 4 + varIntLen(uint64(len(in.SignatureScript))) + len(in.SignatureScript) + 4
	}
	size += varIntLen(uint64(len(t.TxOut)))
	for _, out := range t.TxOut {
		size += 8 + varIntLen(uint64(len(out.PkScript))) + len(out.PkScript)
	}

	buf := make([]byte, 0, size)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], t.Version)
	buf = append(buf, tmp[:]...)
	buf = appendVarInt(buf, uint64(len(t.TxIn)))
	for _, in := range t.TxIn {
		buf = append(buf, in.PreviousOutPoint.Hash[:]...)
		binary.LittleEndian.PutUint32(tmp[:], in.PreviousOutPoint.Index)
		buf = append(buf, tmp[:]...)
		buf = appendVarInt(buf, uint64(len(in.SignatureScript)))
		buf = append(buf, in.SignatureScript...)
		binary.LittleEndian.PutUint32(tmp[:], in.Sequence)
		buf = append(buf, tmp[:]...)
	}
	buf = appendVarInt(buf, uint64(len(t.TxOut)))
	for _, out := range t.TxOut {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], uint64(out.Value))
		buf = append(buf, v[:]...)
		buf = appendVarInt(buf, uint64(len(out.PkScript)))
		buf = append(buf, out.PkScript...)
	}
	binary.LittleEndian.PutUint32(tmp[:], t.LockTime)
	buf = append(buf, tmp[:]...)
	return buf
}

// Hash returns the transaction's canonical (non-witness) double-SHA256
// hash, memoized after first computation.
func (t *Transaction) Hash() chainhash.Hash {
	if t.cachedHash != nil {
		return *t.cachedHash
	}
	h := chainhash.DoubleHashH(t.serializeNonWitness())
	t.cachedHash = &h
	return h
}

// WitnessHash returns the hash including witness data; for transactions
// with no witness it is equal to Hash.
func (t *Transaction) WitnessHash() chainhash.Hash {
	if t.cachedWitnessHash != nil {
		return *t.cachedWitnessHash
	}
	hasWitness := false
	for _, in := range t.TxIn {
		if len(in.Witness) > 0 {
			hasWitness = true
			break
		}
	}
	if !hasWitness {
		h := t.Hash()
		t.cachedWitnessHash = &h
		return h
	}
	buf := t.serializeNonWitness()
	for _, in := range t.TxIn {
		for _, item := range in.Witness {
			buf = append(buf, item...)
		}
	}
	h := chainhash.DoubleHashH(buf)
	t.cachedWitnessHash = &h
	return h
}

// SerializedSize returns the canonical non-witness serialized size in
// bytes, the sizing basis spec.md §4.6 contracts for fee computation.
func (t *Transaction) SerializedSize() int {
	return len(t.serializeNonWitness())
}

// SignatureOperations returns a conservative upper bound on the number of
// signature-verification operations this transaction requires, counting
// one sigop per input (P2PKH-equivalent) plus any OP_CHECKMULTISIG-style
// scripts in output scripts. Precise counting requires script
// interpretation, which spec.md §1 scopes out as an external collaborator;
// this is the same conservative non-script-aware bound the teacher's
// mempool policy layer falls back to before connect-phase script
// execution.
func (t *Transaction) SignatureOperations() int {
	sigops := len(t.TxIn)
	for _, out := range t.TxOut {
		sigops += countCheckMultisig(out.PkScript)
	}
	return sigops
}

func countCheckMultisig(script []byte) int {
	const opCheckMultiSig = 0xae
	const opCheckMultiSigVerify = 0xaf
	count := 0
	for _, op := range script {
		if op == opCheckMultiSig || op == opCheckMultiSigVerify {
			count++
		}
	}
	return count
}

// Fees returns sum(inputs) - sum(outputs), using the ValueIn the store
// populated on each input (Store.PopulateOutput, spec.md §6). Negative
// results (value created by a non-coinbase tx) collapse to zero; check()
// rejects genuinely malformed amounts before accept() ever computes fees.
func (t *Transaction) Fees() uint64 {
	var in, out uint64
	for _, txIn := range t.TxIn {
		in += txIn.ValueIn
	}
	for _, txOut := range t.TxOut {
		out += uint64(txOut.Value)
	}
	if out > in {
		return 0
	}
	return in - out
}

// IsDusty reports whether any output's value is below minOutputSatoshis,
// the dust policy gate named in spec.md §4.6. Adapted from
// _examples/Qitmeer-qitmeer/services/mempool/policy.go's isDust, but the
// threshold is a fixed amount: neither spending cost nor a relay fee
// enters the comparison.
func (t *Transaction) IsDusty(minOutputSatoshis uint64) bool {
	for _, out := range t.TxOut {
		if uint64(out.Value) < minOutputSatoshis {
			return true
		}
	}
	return false
}

// HasDuplicateInputs reports whether two inputs reference the same
// outpoint, a context-free structural check (spec.md §4.3 check phase).
func (t *Transaction) HasDuplicateInputs() bool {
	seen := make(map[OutPoint]struct{}, len(t.TxIn))
	for _, in := range t.TxIn {
		if _, ok := seen[in.PreviousOutPoint]; ok {
			return true
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}
	return false
}

func varIntLen(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func appendVarInt(buf []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(buf, byte(v))
	case v <= 0xffff:
		tmp := make([]byte, 3)
		tmp[0] = 0xfd
		binary.LittleEndian.PutUint16(tmp[1:], uint16(v))
		return append(buf, tmp...)
	case v <= 0xffffffff:
		tmp := make([]byte, 5)
		tmp[0] = 0xfe
		binary.LittleEndian.PutUint32(tmp[1:], uint32(v))
		return append(buf, tmp...)
	default:
		tmp := make([]byte, 9)
		tmp[0] = 0xff
		binary.LittleEndian.PutUint64(tmp[1:], v)
		return append(buf, tmp...)
	}
}
